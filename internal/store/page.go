package store

import "strconv"

// PageFromValues はpage/sizeクエリパラメータをskip/limitに変換する。
// skip = (page-1)*size。数値でない値は0として扱い、範囲の検証は行わない。
// page・sizeとも未指定の場合は(0, 0)となり、全件を返す。
func PageFromValues(page, size string) (skip, limit int64) {
	p := parseInt(page)
	s := parseInt(size)
	if p == 0 && s == 0 {
		return 0, 0
	}
	return (p - 1) * s, s
}

// LimitFromValue はlimitクエリパラメータを解釈する。数値でない値は0（制限なし）。
func LimitFromValue(limit string) int64 {
	return parseInt(limit)
}

func parseInt(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
