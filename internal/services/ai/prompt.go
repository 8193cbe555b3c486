package ai

import (
	"strings"

	"github.com/HammerMeetNail/mindio/internal/models"
)

const defaultLocale = "Turkish"

// BuildUserContext renders the profile block and the response rules sent with
// every prompt.
func BuildUserContext(profile models.UserProfile, locale string) string {
	profile = profile.WithDefaults()
	if strings.TrimSpace(locale) == "" {
		locale = defaultLocale
	}

	var b strings.Builder
	b.WriteString("USER PROFILE:\n")
	b.WriteString("- AgeRange: " + profile.AgeRange + "\n")
	b.WriteString("- Gender: " + profile.Gender + "\n")
	b.WriteString("- CurrentMood: " + profile.Mood + "\n")
	b.WriteString("- SupportTopics: " + profile.SupportTopics + "\n")
	b.WriteString("\n")
	b.WriteString("INSTRUCTION:\n")
	b.WriteString("- Speak " + locale + ".\n")
	b.WriteString("- Short, clear, actionable.\n")
	b.WriteString("- 1-2 sentences.\n")
	b.WriteString("- Be supportive and practical.\n")
	b.WriteString("- Avoid medical diagnosis.\n")
	return b.String()
}

func userDataFor(profile models.UserProfile) *UserData {
	profile = profile.WithDefaults()
	return &UserData{
		AgeRange:      profile.AgeRange,
		Gender:        profile.Gender,
		Mood:          profile.Mood,
		SupportTopics: profile.SupportTopics,
		Location:      profile.Location,
	}
}
