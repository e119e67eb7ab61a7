package llm

import (
	"fmt"

	"github.com/quranlearn/contentpipe/internal/models"
)

// systemPrompt constrains the model to a short, beginner-friendly summary in
// exactly one language with no labels or commentary around it.
func systemPrompt(language string) string {
	return fmt.Sprintf(`You are a Quran scholar explaining verses to general Muslim readers who want to understand, not just recite.

Your task is to write a "What this ayah talks about" summary that:
1. Explains the MAIN MESSAGE of the ayah in 2-3 clear sentences
2. Conveys the beauty of the Arabic expression if relevant (balaghah)
3. Connects the message to daily life or spiritual practice when possible
4. Is accessible to beginners - avoid scholarly jargon

Keep it warm and inviting, like explaining to a curious friend.
Output ONLY the summary in %s, no additional text, labels, or formatting.`, language)
}

// versePrompt embeds the verse position, its Arabic text and the human
// translation matching the target language.
func versePrompt(verse models.Verse, language string) string {
	return fmt.Sprintf(`Surah: %s (Surah %d)
Ayah: %d
Arabic: %s
Translation: %s

What does this ayah talk about?`,
		verse.SurahName, verse.SurahID, verse.AyahNumber,
		verse.TextUthmani, translationFor(verse, language))
}

func translationFor(verse models.Verse, language string) string {
	if language == LanguageIndonesian {
		return verse.TranslationID
	}
	return verse.TranslationEN
}
