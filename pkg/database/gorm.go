package database

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

// NewPGConnection open a gorm connection on PostgreSQL for the user directory
func NewPGConnection(d Connection) (*gorm.DB, error) {
	return dialWithRetry("gorm", d.policy(), func() (*gorm.DB, error) {
		db, err := gorm.Open(postgres.Open(d.ConnectStr), &gorm.Config{
			Logger: gorm_logger.Default.LogMode(gorm_logger.Warn),
		})
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		if d.MaxConns > 0 {
			sqlDB.SetMaxOpenConns(int(d.MaxConns))
		}
		if err := sqlDB.Ping(); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		return db, nil
	})
}
