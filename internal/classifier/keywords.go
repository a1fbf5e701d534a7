package classifier

import (
	"regexp"
	"unicode"
)

// Keyword tables are written in natural spelling and normalized when the
// matchers are built.

var adminKeywords = []string{
	"befehl", "command", "kommando", "cmd",
	"bash", "shell", "terminal", "konsole",
	"systemctl", "service", "daemon", "process", "prozess",
	"grep", "awk", "sed", "locate",
	"chmod", "chown", "chgrp", "permissions", "berechtigungen",
	"mount", "umount", "filesystem", "dateisystem", "disk", "festplatte",
	"df", "du", "fdisk", "lsblk",
	"ps", "top", "htop", "kill", "killall",
	"nohup", "screen", "tmux",
	"ssh", "scp", "rsync", "wget", "curl",
	"netstat", "iptables", "firewall",
	"ping", "traceroute", "nslookup",
	"tar", "zip", "unzip", "gzip",
	"mkdir", "rmdir", "symlink", "hardlink",
	"cron", "crontab", "systemd",
	"journal", "journalctl", "dmesg", "syslog",
	"docker", "container", "kubernetes",
	"apt", "yum", "dnf", "pacman", "snap",
	"pip", "npm", "cargo",
	"vim", "nano", "emacs",
	"linux", "ubuntu", "debian",
}

var codeKeywords = []string{
	"programmiere", "code", "coding", "entwickle",
	"function", "funktion", "method", "methode",
	"class", "klasse", "objekt",
	"variable", "konstante", "array",
	"debug", "debuggen", "exception", "traceback", "stack trace",
	"breakpoint", "logging",
	"python", "javascript", "java", "c++",
	"rust", "golang", "php", "ruby", "perl",
	"html", "css", "sql", "json", "xml", "yaml",
	"git", "github", "repository", "repo",
	"commit", "merge", "branch", "checkout",
	"compile", "kompilieren", "cmake",
	"unittest", "pytest",
	"deploy", "deployment", "ci/cd",
	"syntax", "import",
}

var complexityIndicators = []string{
	"schritt für schritt", "step by step", "anleitung",
	"tutorial", "walkthrough",
	"analysiere", "analyze", "untersuche", "examine",
	"erkläre detailliert", "explain in detail",
	"vergleiche", "compare", "bewerte", "evaluate",
	"löse", "solve", "behebe", "repair",
	"optimiere", "optimize", "verbessere", "improve",
	"troubleshoot", "diagnose", "investigate",
	"berechne", "calculate", "rechne", "compute",
	"mathematik", "mathematics", "formel", "formula",
	"algorithmus", "algorithm", "komplexität",
}

// namedPattern pairs a compiled expression with the signal name it reports.
type namedPattern struct {
	name string
	re   *regexp.Regexp
}

func pattern(name, expr string) namedPattern {
	return namedPattern{name: name, re: regexp.MustCompile(expr)}
}

// Patterns below operate on normalized text (see Normalize): no umlauts, ß
// folded to ss.

var shortcutPatterns = []namedPattern{
	pattern("which_command", `welcher\s+befehl\s+(zeigt|macht|gibt|listet)`),
	pattern("what_does_command", `was\s+macht\s+(der|das)\s+\S+\s+befehl`),
	pattern("which_kommando", `welches\s+kommando\s+(zeigt|macht)`),
	pattern("how_list_files", `wie\s+(liste|zeige)\s+ich.*\b(dateien|ordner|prozesse)\b`),
	pattern("which_command_en", `which\s+command\s+(shows|lists|displays|prints)`),
	pattern("what_does_command_en", `what\s+does\s+the\s+\S+\s+command\s+do`),
	pattern("bare_command", `^(ls|ll|pwd|cd|df|du|ps|top|htop|free|uname)(\s|$)`),
	pattern("bare_text_command", `^(cat|less|more|head|tail|grep|find|which)(\s|$)`),
}

const mathVerbs = `(bestimme|berechne|minimiere|maximiere|optimiere|finde|lose|determine|compute|minimize|maximize|optimize|solve)`

var forcedHeavyPatterns = []namedPattern{
	pattern("math_verb_optimum", `\b`+mathVerbs+`\b[^.]{0,80}\b(optimal\w*|minimum|maxim\w*|argmin|argmax)\b`),
	pattern("mathematically_optimal", `\bmathemati\w*\b.{0,40}\boptimal\w*`),
	pattern("buffer_size_io", `\b(puffergrosse|blockgrosse|buffer\s*size|block\s*size)\b.{0,40}(operation|\bi/?o\b)`),
	pattern("math_verb_equation", `\b`+mathVerbs+`\b.{0,40}\b(gleichung\w*|equation\w*|system)\b`),
	pattern("equation", `\b(gleichung\w*|equation\w*)\b`),
	pattern("fibonacci", `\bfibonacci\b`),
	pattern("optimization_task", `\boptimierungsaufgabe\b`),
}

var programmingPattern = regexp.MustCompile(`\b(implementiere|implement|schreibe|erstelle|programmiere|python|javascript|funktion|function|script|skript|code|klasse|class)\b`)

var structurePatterns = []namedPattern{
	pattern("how_and_also", `wie\s+kann\s+ich.*\bund\b.*\bauch\b`),
	pattern("create_with_for", `erstelle.*\bmit\b.*\bfur\b`),
	pattern("step_by_step", `schritt.*schritt`),
	pattern("explain_why_and_how", `erklare.*warum.*\bund\b.*\bwie\b`),
	pattern("difference_between", `unterschied.*zwischen.*\bund\b`),
	pattern("difference_between_en", `difference\s+between.*\band\b`),
	pattern("how_and_also_en", `how\s+(can|do)\s+i.*\band\b.*\balso\b`),
}

var mathNotationPatterns = []namedPattern{
	pattern("squared_variable", `\b[xyz]\^?2\b`),
	pattern("set_logic_symbol", `[∈∀∃∑∏∫]`),
	pattern("variable_equation", `\b[xyz]\s*[+\-=<>]\s*[xyz]\b`),
	pattern("multi_term_equation", `\+.*\+.*=|=.*\+.*\+`),
	pattern("conditions", `bedingungen?\s+erfullen`),
	pattern("equation_system", `gleichung(en|ssystem)?|system\s+von\s+gleichungen`),
	pattern("solve_equation", `lose.*gleichung`),
	pattern("fibonacci_calc", `berechne.*fibonacci`),
	pattern("determine_optimal", `bestimme.*optimal`),
	pattern("matrix_multiplication", `matrix.*multiplikation`),
	pattern("differential_equation", `differential.*gleichung`),
	pattern("integral_calc", `integral.*berechnung`),
	pattern("probability_distribution", `wahrscheinlichkeit.*verteilung`),
	pattern("buffer_size", `puffer.*grosse`),
	pattern("proof", `beweise.*satz`),
	pattern("eigenvalues", `eigenwerte.*matrix`),
	pattern("fourier_series", `fourier.*reihe`),
}

var questionStart = regexp.MustCompile(`^(was|wie|welche[rs]?|wo|wer|wann|warum|wieso|gibt es|kann|what|how|which|where|who|when|why|is|are|can|does)\b`)

// keywordMatcher reports which of a fixed keyword list occur as whole words.
// The text is split into word tokens once; keywords are indexed by their
// first token and confirmed against the source span, so multi-word entries
// keep their exact separators.
type keywordMatcher struct {
	words   []string
	ntok    []int
	byFirst map[string][]int
}

func newKeywordMatcher(words []string) keywordMatcher {
	m := keywordMatcher{byFirst: map[string][]int{}}
	seen := map[string]bool{}
	for _, w := range words {
		n := Normalize(w)
		toks := tokenize(n)
		if seen[n] || len(toks) == 0 || toks[0].start != 0 || toks[len(toks)-1].end != len(n) {
			continue
		}
		seen[n] = true
		m.byFirst[toks[0].word] = append(m.byFirst[toks[0].word], len(m.words))
		m.words = append(m.words, n)
		m.ntok = append(m.ntok, len(toks))
	}
	return m
}

// match returns the distinct keywords found in normalized text, in table order.
func (m keywordMatcher) match(text string) []string {
	toks := tokenize(text)
	hit := make([]bool, len(m.words))
	for i, t := range toks {
		for _, k := range m.byFirst[t.word] {
			last := i + m.ntok[k] - 1
			if last < len(toks) && text[t.start:toks[last].end] == m.words[k] {
				hit[k] = true
			}
		}
	}
	var out []string
	for k, ok := range hit {
		if ok {
			out = append(out, m.words[k])
		}
	}
	return out
}

type token struct {
	word       string
	start, end int
}

// tokenize splits s into runs of letters, digits and '+', the last so that
// "c++" stays one word.
func tokenize(s string) []token {
	var out []token
	start := -1
	for i, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '+' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, token{word: s[start:i], start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, token{word: s[start:], start: start, end: len(s)})
	}
	return out
}

func matchAll(ps []namedPattern, text string) []string {
	var out []string
	for _, p := range ps {
		if p.re.MatchString(text) {
			out = append(out, p.name)
		}
	}
	return out
}

func firstMatch(ps []namedPattern, text string) (string, bool) {
	for _, p := range ps {
		if p.re.MatchString(text) {
			return p.name, true
		}
	}
	return "", false
}
