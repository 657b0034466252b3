package local

import (
	"regexp"
	"strings"
)

// javaMainClass is the class name javac and java agree on. The source file is
// always Main.java and the run step always launches Main: the three are one
// invariant and change together.
const (
	javaMainClass  = "Main"
	javaSourceFile = javaMainClass + ".java"
)

var (
	mainClassPattern   = regexp.MustCompile(`\bclass\s+` + javaMainClass + `\b`)
	publicClassPattern = regexp.MustCompile(`\bpublic\s+(?:final\s+|abstract\s+)*class\s+\w+`)
	mainMethodPattern  = regexp.MustCompile(`\bstatic\s+void\s+main\s*\(`)
)

// wrapJava makes a submission that lacks a Main class compilable.
//
// Rules, in order:
//   - source that declares class Main is returned unchanged
//   - source that declares some other public class is returned unchanged,
//     so javac reports the real filename mismatch
//   - source with a main method but no class gets a class Main around it
//   - anything else is treated as statements and placed inside main
//
// Leading import statements are kept above the generated class.
func wrapJava(code string) string {
	if mainClassPattern.MatchString(code) || publicClassPattern.MatchString(code) {
		return code
	}

	imports, body := splitJavaImports(code)
	body = strings.TrimSpace(body)

	var b strings.Builder
	for _, line := range imports {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if len(imports) > 0 {
		b.WriteByte('\n')
	}

	b.WriteString("public class " + javaMainClass + " {\n")
	if mainMethodPattern.MatchString(body) {
		b.WriteString(indent(body, "    "))
	} else {
		b.WriteString("    public static void main(String[] args) {\n")
		b.WriteString(indent(body, "        "))
		b.WriteString("    }\n")
	}
	b.WriteString("}\n")
	return b.String()
}

// splitJavaImports peels import and package lines (and blank lines between
// them) off the top of code.
func splitJavaImports(code string) (imports []string, rest string) {
	lines := strings.Split(strings.ReplaceAll(code, "\r\n", "\n"), "\n")
	i := 0
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "import "):
			imports = append(imports, trimmed)
			continue
		case strings.HasPrefix(trimmed, "package "):
			// A package clause would move Main out of the classpath root.
			continue
		}
		break
	}
	return imports, strings.Join(lines[i:], "\n")
}

func indent(s, prefix string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n") + "\n"
}
