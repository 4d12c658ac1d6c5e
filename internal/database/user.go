package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/mkarpenko/pairchat/internal/models"
)

// CreateUser inserts a new user. Uniqueness is enforced by the username
// index at insert time; a duplicate maps to ErrUsernameTaken regardless of
// any pre-check the caller may have done.
func (d *Database) CreateUser(username, passwordHash string) (*models.User, error) {
	user := models.User{Username: username, PasswordHash: passwordHash}
	if err := d.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return &user, nil
}

// FindUserByUsername does an exact, case-sensitive match; case sensitivity
// comes from the column collation. Signup and login share this lookup.
func (d *Database) FindUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := d.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (d *Database) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := d.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (d *Database) UpdateAvatar(id uint, path string) error {
	return d.db.Model(&models.User{}).Where("id = ?", id).Update("avatar_path", path).Error
}

// SearchUsers matches usernames by case-insensitive substring, excluding the
// caller, ordered by username.
func (d *Database) SearchUsers(query string, excludeID uint, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	var users []models.User
	err := d.db.
		Where("username ILIKE ? AND id <> ?", "%"+query+"%", excludeID).
		Order("username asc").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
