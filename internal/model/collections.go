package model

// コレクション名。既存データベース（tourist-Guide）の名前に合わせる。
const (
	CollectionUsers      = "users"
	CollectionTourGuides = "tourGuides"
	CollectionPackages   = "packages"
	CollectionWishlist   = "wishlist"
	CollectionBookings   = "bookings"
	CollectionStories    = "stories"
)

// 重複判定と所有者判定に使うフィールド名。
const (
	FieldPackageID    = "packageId"
	FieldPackageName  = "packageName"
	FieldTouristEmail = "touristEmail"
	FieldGuideName    = "guideName"
	FieldType         = "type"
	FieldReviews      = "reviews"
	FieldUserName     = "userName"
	FieldComment      = "comment"
	FieldDescription  = "description"
	FieldExcerpt      = "excerpt"
)

// BookingStatusInReview は新規予約の初期ステータス。
const BookingStatusInReview = "In Review"

// UniqueKeys はコレクションごとの重複判定キー（ユニークインデックス）を表す。
// 挿入前の存在確認ではなく、ストア側の一意制約で重複を検出する。
// PostgreSQLのマイグレーション（documents_*_key）と一致させること。
var UniqueKeys = map[string][]string{
	CollectionUsers:    {FieldEmail},
	CollectionWishlist: {FieldPackageID, FieldTouristEmail},
	CollectionBookings: {FieldPackageName, FieldTouristEmail},
}
