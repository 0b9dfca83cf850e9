package scraper

import (
	"regexp"
	"strings"
)

var (
	usuarioPattern = regexp.MustCompile(`\d{10,}`)
	digitsPattern  = regexp.MustCompile(`\d+`)
	nombreLabel    = regexp.MustCompile(`(?i)^.*NOMBRE\s*:?\s*`)
)

// extractPersonHeader mines the post-login page text for the person's
// identification block. The portal renders USUARIO, PERSONA and NOMBRE as
// labels with the value on the same line or the next one; the layout is
// loose, so each field is matched independently and missing fields stay
// empty.
func extractPersonHeader(body string) (usuario, personaID, nombre string) {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		clean := strings.TrimSpace(line)
		if clean == "" {
			continue
		}
		upper := strings.ToUpper(clean)

		if usuario == "" && strings.Contains(upper, "USUARIO") {
			if m := usuarioPattern.FindString(clean); m != "" {
				usuario = m
			} else if i+1 < len(lines) {
				usuario = usuarioPattern.FindString(lines[i+1])
			}
		}

		if personaID == "" && strings.Contains(upper, "PERSONA") && !strings.Contains(upper, "CUENTAS") {
			candidate := clean
			if usuario != "" {
				candidate = strings.ReplaceAll(candidate, usuario, "")
			}
			if m := digitsPattern.FindString(candidate); m != "" {
				personaID = m
			} else if i+1 < len(lines) {
				personaID = digitsPattern.FindString(lines[i+1])
			}
		}

		if nombre == "" && strings.Contains(upper, "NOMBRE") {
			rest := strings.TrimSpace(nombreLabel.ReplaceAllString(clean, ""))
			if rest != "" {
				nombre = rest
			} else if i+1 < len(lines) {
				nombre = strings.TrimSpace(lines[i+1])
			}
		}
	}
	return usuario, personaID, nombre
}
