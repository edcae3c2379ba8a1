// Package lk scrapes the lk.mtuci.ru student cabinet, which shares the
// LMS session cookie. A caller is expected to have logged in through
// the lms portal on the same browser session first.
package lk

import (
	"fmt"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("mtuciassist.lib.scrapers.mtuci.lk")

var (
	ErrScheduleCapture = fmt.Errorf("schedule response was not observed on the wire")
	ErrOptionNotFound  = fmt.Errorf("picklist option not found")
)

const DefaultTimetableUrl = "https://lk.mtuci.ru/student/schedule?clear_history=true&period=month"

type Portal struct {
	TimetableUrl string
}

func NewPortal() Portal {
	return Portal{TimetableUrl: DefaultTimetableUrl}
}
