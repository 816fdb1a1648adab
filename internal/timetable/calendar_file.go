package timetable

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// LoadCalendar reads a calendar from a YAML or JSON file. An empty path yields DefaultCalendar.
func LoadCalendar(path string) (Calendar, error) {
	if path == "" {
		return DefaultCalendar(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Calendar{}, fmt.Errorf("read calendar file %s: %w", path, err)
	}

	var cal Calendar
	if err := v.Unmarshal(&cal); err != nil {
		return Calendar{}, fmt.Errorf("decode calendar file %s: %w", path, err)
	}
	if err := validator.New().Struct(cal); err != nil {
		return Calendar{}, fmt.Errorf("invalid calendar file %s: %w", path, err)
	}
	if err := cal.Validate(); err != nil {
		return Calendar{}, fmt.Errorf("invalid calendar file %s: %w", path, err)
	}
	return cal, nil
}
