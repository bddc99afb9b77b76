package validation

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var hhmmPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

var (
	instance *validator.Validate
	once     sync.Once
)

// Validator returns the shared validator with the custom "hhmm" tag registered
func Validator() *validator.Validate {
	once.Do(func() {
		instance = validator.New()
		_ = instance.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			return IsHHMM(fl.Field().String())
		})
	})
	return instance
}

// IsHHMM reports whether s is a 24-hour "HH:MM" time
func IsHHMM(s string) bool {
	return hhmmPattern.MatchString(s)
}

// MinutesOfDay converts "HH:MM" into minutes since midnight. The input must be valid.
func MinutesOfDay(s string) int {
	return int(s[0]-'0')*600 + int(s[1]-'0')*60 + int(s[3]-'0')*10 + int(s[4]-'0')
}
