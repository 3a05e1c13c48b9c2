// Package view describes what the user should see next, independent of the
// chat transport. The telegram layer turns a View into a message with an
// inline keyboard; tests assert on Views directly.
package view

type (
	Button struct {
		Label string
		// Token is the opaque interaction token round-tripped by the chat
		// gateway. The gateway never interprets it.
		Token string
	}

	View struct {
		Text     string
		Keyboard [][]Button
	}
)

func Text(text string) View {
	return View{Text: text}
}

// Tokens flattens the keyboard into the list of interaction tokens it offers.
func (v View) Tokens() []string {
	var res []string
	for _, row := range v.Keyboard {
		for _, b := range row {
			res = append(res, b.Token)
		}
	}
	return res
}
