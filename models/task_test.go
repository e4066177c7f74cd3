package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestTaskCustomFieldValidate(t *testing.T) {
	now := time.Now()

	valid := []TaskCustomField{
		{Name: "notes", FieldType: FieldTypeText, TextValue: ptr("hello")},
		{Name: "estimate", FieldType: FieldTypeNumber, NumberValue: ptr(3.5)},
		{Name: "review", FieldType: FieldTypeDate, DateValue: &now},
		{Name: "billable", FieldType: FieldTypeBool, BoolValue: ptr(true)},
	}
	for _, f := range valid {
		assert.NoError(t, f.Validate(), "field %q", f.Name)
	}
}

func TestTaskCustomFieldValidateRejects(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		field TaskCustomField
	}{
		{"no value", TaskCustomField{Name: "empty", FieldType: FieldTypeText}},
		{"two values", TaskCustomField{
			Name: "both", FieldType: FieldTypeText,
			TextValue: ptr("x"), NumberValue: ptr(1.0),
		}},
		{"value does not match tag", TaskCustomField{
			Name: "mismatch", FieldType: FieldTypeNumber, TextValue: ptr("x"),
		}},
		{"date tag with bool value", TaskCustomField{
			Name: "mismatch2", FieldType: FieldTypeDate, BoolValue: ptr(false),
		}},
		{"unknown type", TaskCustomField{
			Name: "odd", FieldType: "duration", DateValue: &now,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.field.Validate())
		})
	}
}

func TestNotificationTypeIsDueDateDriven(t *testing.T) {
	assert.True(t, NotificationTaskDueSoon.IsDueDateDriven())
	assert.True(t, NotificationTaskOverdue.IsDueDateDriven())
	assert.False(t, NotificationTaskAssigned.IsDueDateDriven())
	assert.False(t, NotificationProjectStatusChanged.IsDueDateDriven())
	assert.False(t, NotificationMemberJoined.IsDueDateDriven())
}
