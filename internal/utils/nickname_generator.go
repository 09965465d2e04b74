package utils

import (
	"fmt"
	"hash/fnv"
	"strings"
)

var adjectives = []string{
	"Swift", "Brave", "Clever", "Bold", "Mighty",
	"Silent", "Wild", "Golden", "Iron", "Silver",
	"Dark", "Bright", "Storm", "Shadow", "Fire",
	"Ice", "Thunder", "Wind", "Steel", "Diamond",
}

var nouns = []string{
	"Falcon", "Tiger", "Dragon", "Wolf", "Eagle",
	"Bear", "Lion", "Hawk", "Phoenix", "Panther",
	"Fox", "Raven", "Viper", "Shark", "Lynx",
	"Cobra", "Stallion", "Jaguar", "Orca", "Leopard",
}

// DisplayName returns username when set, otherwise a stable
// "Adjective_Noun_XXXX" nickname derived from userID
func DisplayName(userID, username string) string {
	if name := strings.TrimSpace(username); name != "" {
		return name
	}
	return Nickname(userID)
}

// Nickname maps a user id to the same nickname on every call
func Nickname(userID string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	sum := h.Sum64()

	adj := adjectives[sum%uint64(len(adjectives))]
	sum /= uint64(len(adjectives))
	noun := nouns[sum%uint64(len(nouns))]
	sum /= uint64(len(nouns))

	return fmt.Sprintf("%s_%s_%04d", adj, noun, sum%10000)
}
