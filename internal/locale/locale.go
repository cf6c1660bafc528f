package locale

// Locale holds the parts of a POSIX locale specifier such as
// "en_US.UTF-8@euro" that matter for picking localized values out of
// link description files. The charset segment is never kept.
type Locale struct {
	Language string
	Country  string
	Modifier string
}

// Parse splits a locale specifier into language, country and modifier.
//
// The language is the run of ASCII letters from the start of the
// specifier. A country may follow after '_', a charset after '.' (it is
// skipped), and a modifier after '@'. Each segment is only accepted if
// it is terminated by the end of the string or by the next recognised
// delimiter; a stray byte abandons that segment and everything after
// it. A delimiter out of order (such as '@' with no '_' seen) likewise
// ends parsing. Parse never fails: a malformed specifier just yields
// fewer components.
func Parse(spec string) Locale {
	var loc Locale

	i := 0
	for ; i < len(spec) && isAlpha(spec[i]); i++ {
	}
	if i < len(spec) && spec[i] != '_' && spec[i] != '.' && spec[i] != '@' {
		return loc
	}
	loc.Language = spec[:i]

	// A country is only recognised directly after '_', and the
	// modifier only after a country, matching how setlocale
	// specifiers are composed.
	if i >= len(spec) || spec[i] != '_' {
		return loc
	}
	i++
	start := i
	for ; i < len(spec) && isAlpha(spec[i]); i++ {
	}
	if i < len(spec) && spec[i] != '.' && spec[i] != '@' {
		return loc
	}
	loc.Country = spec[start:i]

	// Skip the charset segment, e.g. ".UTF-8".
	if i < len(spec) && spec[i] == '.' {
		for ; i < len(spec) && spec[i] != '@'; i++ {
		}
	}

	if i < len(spec) && spec[i] == '@' {
		i++
		start = i
		for ; i < len(spec) && isAlpha(spec[i]); i++ {
		}
		if i == len(spec) {
			loc.Modifier = spec[start:]
		}
	}

	return loc
}

// String reassembles the parsed components, without any charset.
func (l Locale) String() string {
	s := l.Language
	if l.Country != "" {
		s += "_" + l.Country
	}
	if l.Modifier != "" {
		s += "@" + l.Modifier
	}
	return s
}

func isAlpha(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
