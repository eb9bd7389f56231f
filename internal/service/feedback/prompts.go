package feedback

import (
	"fmt"
	"strconv"
	"strings"

	"voice-ordering-service/internal/catalog"
	"voice-ordering-service/internal/service/intent"
	"voice-ordering-service/internal/service/stt"
)

var numberWords = []string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten"}

func spokenNumber(n int) string {
	if n >= 0 && n < len(numberWords) {
		return numberWords[n]
	}
	return strconv.Itoa(n)
}

// Confirmation names every item and quantity about to be added.
func Confirmation(intents []intent.Intent) string {
	parts := make([]string, 0, len(intents))
	for _, in := range intents {
		parts = append(parts, spokenNumber(in.Quantity)+" "+in.Item.Name)
	}
	return "Adding " + joinList(parts) + " to your cart."
}

// RetryCoaching asks the user to try again with an example phrase built
// from the first item in cat.
func RetryCoaching(cat *catalog.Catalog) string {
	example := "two chocolate corn"
	if cat != nil && cat.Len() > 0 {
		item := cat.Items()[0]
		name := strings.ToLower(item.Name)
		if len(item.Keywords) > 0 {
			name = item.Keywords[0]
		}
		example = "two " + name
	}
	return fmt.Sprintf("Sorry, I didn't catch a menu item. Try saying something like %q.", example)
}

// Remediation explains a capability error and how to recover from it.
func Remediation(kind stt.Kind) string {
	switch kind {
	case stt.KindPermissionDenied:
		return "I can't use the microphone. Please allow microphone access and try again."
	case stt.KindNoAudioInput:
		return "I didn't hear anything. Check that your microphone is connected and try again."
	case stt.KindServiceUnavailable:
		return "Voice ordering is unavailable right now. Please try again in a moment."
	case stt.KindNetwork:
		return "I lost the connection. Check your network and try again."
	default:
		return "Something went wrong with voice ordering. Please try again."
	}
}

func joinList(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}
