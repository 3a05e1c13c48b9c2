package nav

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Navigation tokens are the closed vocabulary of callback data the bot emits
// and accepts. The chat gateway round-trips them opaquely; anything that does
// not decode into one of the shapes below is dropped by the router.
const (
	tokenViewSchedule   = "view_schedule"
	tokenBackToSchedule = "back_to_schedule"
	tokenBackToLessons  = "back_to_lessons"
	tokenDeleteData     = "delete_my_data"
	tokenIgnore         = "ignore"

	calendarPrefix = "calendar_"
	lessonPrefix   = "lesson_"

	dateLayout = "2006-01-02"
)

var dateTokenPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type (
	Event interface{ navEvent() }

	OpenSchedule   struct{}
	BackToSchedule struct{}
	BackToLessons  struct{}
	DeleteData     struct{}
	Ignore         struct{}

	// MonthShift carries the raw year/month from a calendar_<y>_<m> token;
	// month 0 and 13 are legal and normalized by the controller.
	MonthShift struct {
		Year  int
		Month int
	}

	PickDate struct {
		Date time.Time
	}

	PickLesson struct {
		Index int
	}
)

func (OpenSchedule) navEvent()   {}
func (BackToSchedule) navEvent() {}
func (BackToLessons) navEvent()  {}
func (DeleteData) navEvent()     {}
func (Ignore) navEvent()         {}
func (MonthShift) navEvent()     {}
func (PickDate) navEvent()       {}
func (PickLesson) navEvent()     {}

// DecodeToken parses raw callback data into a typed navigation event.
func DecodeToken(raw string) (Event, error) {
	raw = strings.TrimSpace(raw)

	switch raw {
	case tokenViewSchedule:
		return OpenSchedule{}, nil
	case tokenBackToSchedule:
		return BackToSchedule{}, nil
	case tokenBackToLessons:
		return BackToLessons{}, nil
	case tokenDeleteData:
		return DeleteData{}, nil
	case tokenIgnore:
		return Ignore{}, nil
	}

	if rest, ok := strings.CutPrefix(raw, calendarPrefix); ok {
		parts := strings.Split(rest, "_")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid calendar token: %s", raw)
		}
		year, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid calendar year: %s", raw)
		}
		month, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid calendar month: %s", raw)
		}
		return MonthShift{Year: year, Month: month}, nil
	}

	if rest, ok := strings.CutPrefix(raw, lessonPrefix); ok {
		index, err := strconv.Atoi(rest)
		if err != nil || index < 0 {
			return nil, fmt.Errorf("invalid lesson token: %s", raw)
		}
		return PickLesson{Index: index}, nil
	}

	if dateTokenPattern.MatchString(raw) {
		date, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid date token: %s", raw)
		}
		return PickDate{Date: date}, nil
	}

	return nil, fmt.Errorf("unrecognized token: %s", raw)
}

func monthToken(year, month int) string {
	return fmt.Sprintf("%s%d_%d", calendarPrefix, year, month)
}

func dateToken(date time.Time) string {
	return date.Format(dateLayout)
}

func lessonToken(index int) string {
	return fmt.Sprintf("%s%d", lessonPrefix, index)
}

// ViewScheduleToken and DeleteDataToken are exported for the /start menu.
func ViewScheduleToken() string { return tokenViewSchedule }
func DeleteDataToken() string   { return tokenDeleteData }
