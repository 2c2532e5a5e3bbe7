package repo

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrActiveEntry: у пользователя уже есть открытая сессия в этой организации.
	ErrActiveEntry = errors.New("active time entry exists")
	// ErrStale: строку успели изменить между чтением и записью.
	ErrStale = errors.New("record changed concurrently")
)

// translate сводит ошибки gorm (TranslateError включён в db.Open) к ошибкам пакета.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}
