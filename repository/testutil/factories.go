package testutil

import (
	"fmt"
	"time"

	"bicho/models"
)

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

// CreateTestRawDraw creates a complete provider entry
func CreateTestRawDraw(place int, date time.Time, hour, milhar, group string) models.RawDraw {
	return models.RawDraw{
		Place:   StringPtr(fmt.Sprint(place)),
		Lottery: models.Lottery{Title: StringPtr("Test Lottery")},
		Milhar:  StringPtr(milhar),
		Hour:    StringPtr(hour),
		Group:   StringPtr(group),
		Date:    StringPtr(date.Format("02/01/2006")),
	}
}

// CreateTestSnapshot wraps entries in a single draw group
func CreateTestSnapshot(entries ...models.RawDraw) *models.Snapshot {
	return &models.Snapshot{
		DrawGroups: [][]models.RawDraw{entries},
		Status:     "success",
	}
}

// CreateTestDraw creates a normalised draw record with every field present
func CreateTestDraw(place int, date time.Time, hour string, group int) *models.DrawRecord {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	milhar := fmt.Sprintf("%04d", group*4)
	return &models.DrawRecord{
		Place:     place,
		Date:      &day,
		Hour:      &hour,
		Milhar:    &milhar,
		Group:     &group,
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// CreateTestGroup creates a group with the given numbers
func CreateTestGroup(hour string, place int, numbers ...int) *models.Group {
	return &models.Group{
		Hour:    hour,
		Place:   place,
		Numbers: numbers,
	}
}

// Day returns midnight UTC of the given date
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
