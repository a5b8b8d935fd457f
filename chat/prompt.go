//
// Tencent is pleased to support the open source community by making trpc-assistant-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-assistant-go is licensed under the Apache License Version 2.0.
//
//

package chat

import "strings"

// Language selects the localization of system prompts and canned messages.
type Language string

const (
	// LanguageEnglish is the default language.
	LanguageEnglish Language = "en"
	// LanguageGerman selects German prompts.
	LanguageGerman Language = "de"
	// LanguageFrench selects French prompts.
	LanguageFrench Language = "fr"
)

// NormalizeLanguage maps an arbitrary language tag onto a supported
// Language, falling back to English.
func NormalizeLanguage(lang string) Language {
	switch Language(strings.ToLower(strings.TrimSpace(lang))) {
	case LanguageGerman:
		return LanguageGerman
	case LanguageFrench:
		return LanguageFrench
	default:
		return LanguageEnglish
	}
}

// promptSet holds every localized string for one language.
type promptSet struct {
	document          string
	vehicle           string
	documentIntro     string
	manualIntro       string
	attribution       string
	errorMessage      string
	streamErrorNotice string
}

var promptSets = map[Language]promptSet{
	LanguageEnglish: {
		document:          `You are a helpful PDF assistant analyzing "%s". Answer the user's question based on the PDF content.`,
		vehicle:           `You are a helpful automotive assistant for %s %s. Answer the user's question based on your knowledge of the vehicle.`,
		documentIntro:     "Here is some information from the PDF:",
		manualIntro:       "Here is some information from the vehicle manual:",
		attribution:       `Using information from "%s":`,
		errorMessage:      "I apologize, but I'm having trouble accessing the information right now. Please try again later.",
		streamErrorNotice: "Error generating response.",
	},
	LanguageGerman: {
		document:          `Du bist ein hilfreicher PDF-Assistent, der "%s" analysiert. Beantworte die Frage des Benutzers basierend auf dem PDF-Inhalt.`,
		vehicle:           `Du bist ein hilfreicher Fahrzeug-Assistent für %s %s. Beantworte die Frage des Benutzers basierend auf deinem Wissen über das Fahrzeug.`,
		documentIntro:     "Hier sind einige Informationen aus dem PDF:",
		manualIntro:       "Hier sind einige Informationen aus dem Fahrzeughandbuch:",
		attribution:       `Unter Verwendung von Informationen aus "%s":`,
		errorMessage:      "Es tut mir leid, aber ich habe im Moment Schwierigkeiten, auf die Informationen zuzugreifen. Bitte versuche es später erneut.",
		streamErrorNotice: "Fehler bei der Generierung der Antwort.",
	},
	LanguageFrench: {
		document:          `Vous êtes un assistant PDF utile qui analyse "%s". Répondez à la question de l'utilisateur en fonction du contenu du PDF.`,
		vehicle:           `Vous êtes un assistant automobile utile pour %s %s. Répondez à la question de l'utilisateur en fonction de vos connaissances sur le véhicule.`,
		documentIntro:     "Voici quelques informations du PDF:",
		manualIntro:       "Voici quelques informations du manuel du véhicule:",
		attribution:       `En utilisant les informations de "%s":`,
		errorMessage:      "Je suis désolé, mais j'ai du mal à accéder aux informations pour le moment. Veuillez réessayer plus tard.",
		streamErrorNotice: "Erreur lors de la génération de la réponse.",
	},
}

func promptsFor(lang Language) promptSet {
	if set, ok := promptSets[lang]; ok {
		return set
	}
	return promptSets[LanguageEnglish]
}
