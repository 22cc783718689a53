// Package database はPostgreSQL接続とマイグレーション管理を提供する。
// PostgreSQLはSTORE_DRIVER=postgresの場合のドキュメントストアとして使用する。
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrations にはdocumentsテーブルと、重複判定キー
// （users.email、wishlist/bookingsのpackageId+touristEmail）を支える
// 部分ユニークインデックスの定義が入っている。
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewMigrator はdocumentsスキーマ用のmigrateインスタンスを生成する。
// 呼び出し側がCloseすること。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations は未適用のマイグレーションをすべて適用し、適用後のスキーマバージョンを返す。
// 前回の適用が途中で失敗しdirtyのままなら、何も適用せずにエラーを返す。
func RunMigrations(databaseURL string) (uint, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	if v, dirty, err := schemaVersion(m); err != nil {
		return 0, err
	} else if dirty {
		return v, fmt.Errorf("documents schema is dirty at version %d", v)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}

	v, _, err := schemaVersion(m)
	return v, err
}

// schemaVersion は未適用（ErrNilVersion）をバージョン0として扱う。
func schemaVersion(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, dirty, nil
}
