package nav

import (
	"fmt"
	"strings"
	"time"

	"github.com/fadeni/school-diary-bot/internal/diary"
	"github.com/fadeni/school-diary-bot/internal/view"
)

const timeLayout = "15:04"

func lessonListView(date time.Time, lessons []diary.Event) view.View {
	if len(lessons) == 0 {
		return view.View{
			Text: msgNoLessons,
			Keyboard: [][]view.Button{
				{{Label: "Back to calendar", Token: tokenBackToSchedule}},
			},
		}
	}

	keyboard := make([][]view.Button, 0, len(lessons)+1)
	for i, lesson := range lessons {
		label := fmt.Sprintf("%s-%s %s",
			lesson.StartAt.Format(timeLayout),
			lesson.FinishAt.Format(timeLayout),
			lesson.SubjectName,
		)
		keyboard = append(keyboard, []view.Button{{Label: label, Token: lessonToken(i)}})
	}
	keyboard = append(keyboard, []view.Button{{Label: "Back to calendar", Token: tokenBackToSchedule}})

	return view.View{
		Text:     fmt.Sprintf("Pick a lesson on %s:", date.Format("02.01.2006")),
		Keyboard: keyboard,
	}
}

func lessonDetailView(lesson diary.Event) view.View {
	b := &strings.Builder{}
	fmt.Fprintf(b, "⏰ %s-%s\n", lesson.StartAt.Format(timeLayout), lesson.FinishAt.Format(timeLayout))
	fmt.Fprintf(b, "📚 Subject: %s\n", lesson.SubjectName)
	fmt.Fprintf(b, "🚪 Room: %s\n", orDash(lesson.RoomNumber))
	fmt.Fprintf(b, "📖 Theme: %s\n", orDash(lesson.LessonTheme))

	if len(lesson.Homework) > 0 {
		b.WriteString("📝 Homework:\n")
		for _, desc := range lesson.Homework {
			fmt.Fprintf(b, "- %s\n", desc)
		}
	} else {
		b.WriteString("📝 Homework: none\n")
	}

	if lesson.HasMaterials {
		b.WriteString("💻 The teacher attached materials to the homework.\n")
	}

	return view.View{
		Text: b.String(),
		Keyboard: [][]view.Button{
			{{Label: "Back to lessons", Token: tokenBackToLessons}},
			{{Label: "Back to calendar", Token: tokenBackToSchedule}},
		},
	}
}

func marksView(marks []diary.Mark) view.View {
	b := &strings.Builder{}
	b.WriteString("Recent marks:\n")
	for _, m := range marks {
		fmt.Fprintf(b, "%s — %s: %s", m.Date.Format("02.01"), m.SubjectName, m.Value)
		if m.Comment != "" {
			fmt.Fprintf(b, " (%s)", m.Comment)
		}
		b.WriteString("\n")
	}
	return view.Text(b.String())
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
