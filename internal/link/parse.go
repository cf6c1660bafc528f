package link

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/0xADE/ade-linkd/internal/locale"
)

// NewFromFile parses a link description file into a Link, localizing
// Name, GenericName and Comment against loc. The returned link holds
// one reference, owned by the caller.
func NewFromFile(path string, loc locale.Locale) (*Link, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	l := &Link{
		ref:        1,
		sourceFile: path,
		kind:       -1,
	}

	names := make(map[string]string)
	genericNames := make(map[string]string)
	comments := make(map[string]string)

	scanner := bufio.NewScanner(file)
	var inLinkSection bool

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Check for section header
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inLinkSection = strings.Trim(line, "[]") == "Desktop Entry"
			continue
		}

		if !inLinkSection {
			continue
		}

		// Parse key=value pairs
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "Type":
			switch value {
			case "Application":
				l.kind = KindApplication
			case "Link":
				l.kind = KindURL
			case "Directory":
				l.kind = KindDirectory
			}
		case "Name":
			names[""] = value
		case "GenericName":
			genericNames[""] = value
		case "Comment":
			comments[""] = value
		case "Exec":
			l.exec = value
		case "Path":
			l.path = value
		case "URL":
			l.url = value
		case "Terminal":
			l.terminal = strings.ToLower(value) == "true"
		case "NoDisplay":
			l.noDisplay = strings.ToLower(value) == "true"
		case "Hidden":
			l.hidden = strings.ToLower(value) == "true"
		case "OnlyShowIn":
			l.onlyShowIn = EnvFromList(value)
		case "NotShowIn":
			l.notShowIn = EnvFromList(value)
		case "Categories":
			// Categories are semicolon-separated
			cats := strings.Split(value, ";")
			l.categories = make([]string, 0, len(cats))
			for _, cat := range cats {
				cat = strings.TrimSpace(cat)
				if cat != "" {
					l.categories = append(l.categories, cat)
				}
			}
		default:
			// Localized keys like Name[en_US@euro]
			if k, tag, ok := splitLocalized(key); ok {
				switch k {
				case "Name":
					names[tag] = value
				case "GenericName":
					genericNames[tag] = value
				case "Comment":
					comments[tag] = value
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// Validate required fields per kind
	switch l.kind {
	case KindApplication:
		if l.exec == "" {
			return nil, fmt.Errorf("%s: application link without Exec", path)
		}
	case KindURL:
		if l.url == "" {
			return nil, fmt.Errorf("%s: URL link without URL", path)
		}
	case KindDirectory:
	default:
		return nil, fmt.Errorf("%s: missing or unknown Type", path)
	}

	l.name = pickLocalized(names, loc)
	l.genericName = pickLocalized(genericNames, loc)
	l.comment = pickLocalized(comments, loc)

	// Fall back to the filename if no Name was given
	if l.name == "" {
		base := filepath.Base(path)
		l.name = strings.TrimSuffix(base, FileSuffix)
	}

	return l, nil
}

// splitLocalized splits a key of the form "Name[tag]" into its key and
// locale tag.
func splitLocalized(key string) (string, string, bool) {
	open := strings.IndexByte(key, '[')
	if open < 1 || !strings.HasSuffix(key, "]") {
		return "", "", false
	}
	return key[:open], key[open+1 : len(key)-1], true
}

// pickLocalized selects the best value for the locale. Matching
// follows the usual precedence: lang_COUNTRY@MODIFIER, lang_COUNTRY,
// lang@MODIFIER, lang, then the unlocalized default.
func pickLocalized(values map[string]string, loc locale.Locale) string {
	if loc.Language != "" {
		var candidates []string
		if loc.Country != "" && loc.Modifier != "" {
			candidates = append(candidates,
				loc.Language+"_"+loc.Country+"@"+loc.Modifier)
		}
		if loc.Country != "" {
			candidates = append(candidates, loc.Language+"_"+loc.Country)
		}
		if loc.Modifier != "" {
			candidates = append(candidates, loc.Language+"@"+loc.Modifier)
		}
		candidates = append(candidates, loc.Language)

		for _, tag := range candidates {
			if v, ok := values[tag]; ok {
				return v
			}
		}
	}
	return values[""]
}

// ExpandExec expands %-codes in an application's Exec line against the
// given argument, dropping codes that take no argument here.
func (l *Link) ExpandExec(arg string) string {
	exec := l.exec

	exec = strings.ReplaceAll(exec, "%f", arg)
	exec = strings.ReplaceAll(exec, "%F", arg)
	exec = strings.ReplaceAll(exec, "%u", arg)
	exec = strings.ReplaceAll(exec, "%U", arg)
	exec = strings.ReplaceAll(exec, "%c", l.name)
	exec = strings.ReplaceAll(exec, "%k", l.sourceFile)
	exec = removeFieldCodes(exec)

	fields := strings.Fields(exec)
	return strings.Join(fields, " ")
}

func removeFieldCodes(s string) string {
	var result strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '%' && i+1 < len(s) {
			// Skip % and next character if it's a known code
			next := s[i+1]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') || next == '%' {
				if next == '%' {
					result.WriteByte('%')
				}
				i += 2
				continue
			}
		}
		result.WriteByte(s[i])
		i++
	}
	return result.String()
}
