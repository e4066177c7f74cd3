package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Task priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task represents a unit of work inside a project
type Task struct {
	gorm.Model
	ProjectID   uint       `gorm:"not null;index" json:"project_id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description"`
	AssigneeID  *uint      `gorm:"index" json:"assignee_id,omitempty"`
	DueDate     *time.Time `gorm:"index" json:"due_date,omitempty"`
	Completed   bool       `gorm:"default:false;index" json:"completed"`
	Priority    string     `gorm:"default:'medium'" json:"priority"`
	CreatedBy   uint       `gorm:"not null" json:"created_by"`

	// Relations
	Project      Project           `json:"-"`
	Assignee     *User             `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	CustomFields []TaskCustomField `gorm:"foreignKey:TaskID" json:"custom_fields,omitempty"`
}

// Custom field types
const (
	FieldTypeText   = "text"
	FieldTypeNumber = "number"
	FieldTypeDate   = "date"
	FieldTypeBool   = "bool"
)

// TaskCustomField is a tagged variant: FieldType selects which of the
// typed value columns is meaningful. Exactly one value column must be
// set and it must match the tag.
type TaskCustomField struct {
	gorm.Model
	TaskID    uint   `gorm:"not null;index" json:"task_id"`
	Name      string `gorm:"not null" json:"name"`
	FieldType string `gorm:"not null" json:"field_type"`

	TextValue   *string    `json:"text_value,omitempty"`
	NumberValue *float64   `json:"number_value,omitempty"`
	DateValue   *time.Time `json:"date_value,omitempty"`
	BoolValue   *bool      `json:"bool_value,omitempty"`

	// Relations
	Task Task `json:"-"`
}

// Validate checks that the field type is known and the matching value
// column (and only that column) is populated
func (f *TaskCustomField) Validate() error {
	set := 0
	if f.TextValue != nil {
		set++
	}
	if f.NumberValue != nil {
		set++
	}
	if f.DateValue != nil {
		set++
	}
	if f.BoolValue != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("custom field %q must set exactly one value, got %d", f.Name, set)
	}

	switch f.FieldType {
	case FieldTypeText:
		if f.TextValue == nil {
			return fmt.Errorf("custom field %q is typed text but has no text value", f.Name)
		}
	case FieldTypeNumber:
		if f.NumberValue == nil {
			return fmt.Errorf("custom field %q is typed number but has no number value", f.Name)
		}
	case FieldTypeDate:
		if f.DateValue == nil {
			return fmt.Errorf("custom field %q is typed date but has no date value", f.Name)
		}
	case FieldTypeBool:
		if f.BoolValue == nil {
			return fmt.Errorf("custom field %q is typed bool but has no bool value", f.Name)
		}
	default:
		return fmt.Errorf("custom field %q has unknown type %q", f.Name, f.FieldType)
	}
	return nil
}
