package nav

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fadeni/school-diary-bot/internal/view"
)

var weekdayLabels = []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

// normalizeMonth wraps month arithmetic across year boundaries:
// month 0 becomes December of the previous year, month 13 January of the next.
func normalizeMonth(year, month int) (int, time.Month) {
	for month < 1 {
		month += 12
		year--
	}
	for month > 12 {
		month -= 12
		year++
	}
	return year, time.Month(month)
}

// calendarKeyboard renders the month grid: header, weekday row, day cells
// (blanks are inert), and a << / >> navigation row.
func calendarKeyboard(year int, month time.Month) [][]view.Button {
	keyboard := make([][]view.Button, 0, 9)

	keyboard = append(keyboard, []view.Button{{
		Label: fmt.Sprintf("%s %d", month, year),
		Token: tokenIgnore,
	}})

	weekdays := make([]view.Button, 0, len(weekdayLabels))
	for _, label := range weekdayLabels {
		weekdays = append(weekdays, view.Button{Label: label, Token: tokenIgnore})
	}
	keyboard = append(keyboard, weekdays)

	for _, week := range monthGrid(year, month) {
		row := make([]view.Button, 0, 7)
		for _, day := range week {
			if day == 0 {
				row = append(row, view.Button{Label: " ", Token: tokenIgnore})
				continue
			}
			date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
			row = append(row, view.Button{Label: strconv.Itoa(day), Token: dateToken(date)})
		}
		keyboard = append(keyboard, row)
	}

	keyboard = append(keyboard, []view.Button{
		{Label: "<<", Token: monthToken(year, int(month)-1)},
		{Label: " ", Token: tokenIgnore},
		{Label: ">>", Token: monthToken(year, int(month)+1)},
	})

	return keyboard
}

// monthGrid lays the month out in Monday-first weeks, zero for cells that
// belong to adjacent months.
func monthGrid(year int, month time.Month) [][]int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(first.Weekday()) + 6) % 7
	daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()

	grid := make([][]int, 0, 6)
	week := make([]int, 7)
	cell := offset
	for day := 1; day <= daysInMonth; day++ {
		week[cell] = day
		cell++
		if cell == 7 {
			grid = append(grid, week)
			week = make([]int, 7)
			cell = 0
		}
	}
	if cell > 0 {
		grid = append(grid, week)
	}
	return grid
}
