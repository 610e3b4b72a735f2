package flow

import (
	"fmt"
	"net/url"
	"strings"

	"linkscout/internal/catalog"
)

const (
	welcomeText = "👋 Welcome! I help you find movies and series on the sites I track.\nSend me any message to begin."

	queryPromptText = "🔎 Send me the name of the movie or series you want to search for."

	searchingText = "⏳ Searching, hang on..."

	completionMenuText = "What would you like to do next?\n\n1️⃣ New search\n2️⃣ Clear chat\n3️⃣ Main menu"

	clearedText = "🧹 Cleared. Send me any message when you want to search again."

	invalidChoiceText = "❌ Invalid choice. Please reply with one of the numbers below.\n\n"

	apologyText = "😔 Something went wrong on my side. Please try again."
)

func siteMenu(sites []catalog.Site) string {
	var sb strings.Builder
	sb.WriteString("🌐 *Available Sites:*\n\n")
	for i, site := range sites {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, site.ID)
	}
	sb.WriteString("\nReply with the number of the site you want.")
	return sb.String()
}

func categoryMenu(site catalog.Site) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📂 *Categories for %s:*\n\n", site.ID)
	for i, cat := range site.Categories {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, cat.Label)
	}
	sb.WriteString("\nReply with the number of the category you want.")
	return sb.String()
}

func selectedCategoryText(label string) string {
	return fmt.Sprintf("✅ You selected: *%s*", label)
}

func resultMessage(answerURL string) string {
	return "✅ Here you go:\n" + answerURL
}

// composeSearchURL builds the site search link: terms are individually
// escaped and joined with +, the way the target sites' search endpoints
// expect them.
func composeSearchURL(lookupURL, query string) string {
	terms := strings.Fields(query)
	escaped := make([]string, len(terms))
	for i, term := range terms {
		escaped[i] = url.QueryEscape(term)
	}
	return lookupURL + "?s=" + strings.Join(escaped, "+")
}
