// ABOUTME: Canned fallback replies used when generation is unavailable
// ABOUTME: Word-boundary keyword matching so "holanda" never reads as "hola"

package convo

import (
	"strings"
	"unicode"
)

const genericAck = "Recibido. ¿En qué más puedo ayudarte?"

const apologyReply = "Lo siento, algo salió mal. Por favor intenta de nuevo."

type cannedClass struct {
	keywords []string
	reply    string
}

// Classes are checked in order; the first class with a matching word wins.
var cannedClasses = []cannedClass{
	{
		keywords: []string{"hola", "buenas", "buenos", "hello", "hi", "hey"},
		reply:    "¡Hola! ¿En qué puedo ayudarte hoy?",
	},
	{
		keywords: []string{"gracias", "thanks"},
		reply:    "¡De nada! Aquí estoy si necesitas algo más.",
	},
	{
		keywords: []string{"adiós", "adios", "chau", "chao", "bye", "hasta"},
		reply:    "¡Hasta luego! Que tengas un buen día.",
	},
}

// cannedReply picks a fallback reply by matching whole words in the
// message. Returns the generic acknowledgment when nothing matches.
func cannedReply(text string) string {
	words := splitWords(strings.ToLower(text))
	for _, class := range cannedClasses {
		for _, kw := range class.keywords {
			if words[kw] {
				return class.reply
			}
		}
	}
	return genericAck
}

// splitWords tokenizes on anything that is not a letter or digit, so
// punctuation-glued greetings like "hola!" still match.
func splitWords(text string) map[string]bool {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := make(map[string]bool, len(fields))
	for _, f := range fields {
		words[f] = true
	}
	return words
}
