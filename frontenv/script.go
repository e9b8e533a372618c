package frontenv

import (
	"strings"
)

const (
	scriptOpen  = "<script>\n"
	scriptClose = "</script>"
)

// BuildScriptBlock renders env as an inline script element:
//
//	<script>
//	window.KEY = "VALUE";
//	</script>
//
// Values are written verbatim. A value containing a double quote, a
// newline or "</script>" produces broken or unsafe markup; use
// BuildEscapedScriptBlock when values are not trusted.
func BuildScriptBlock(env *Environment) string {
	var b strings.Builder
	b.WriteString(scriptOpen)
	writeAssignments(&b, env, false)
	b.WriteString(scriptClose)
	return b.String()
}

// BuildEscapedScriptBlock is BuildScriptBlock with every value escaped for
// a double-quoted JavaScript string inside an HTML script element.
func BuildEscapedScriptBlock(env *Environment) string {
	var b strings.Builder
	b.WriteString(scriptOpen)
	writeAssignments(&b, env, true)
	b.WriteString(scriptClose)
	return b.String()
}

// ScriptBody returns only the assignment lines, suitable for serving as a
// standalone JavaScript file.
func ScriptBody(env *Environment, escape bool) string {
	var b strings.Builder
	writeAssignments(&b, env, escape)
	return b.String()
}

func writeAssignments(b *strings.Builder, env *Environment, escape bool) {
	if env == nil {
		return
	}
	for _, key := range env.keys {
		b.WriteString("window.")
		b.WriteString(key)
		b.WriteString(" = \"")
		if escape {
			b.WriteString(EscapeValue(env.vars[key]))
		} else {
			b.WriteString(env.vars[key])
		}
		b.WriteString("\";\n")
	}
}

var valueEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
	"<", `\u003c`,
)

// EscapeValue escapes s for use between double quotes in inline script.
// "<" is escaped so that neither "</script>" nor "<!--" can appear in the
// output.
func EscapeValue(s string) string {
	return valueEscaper.Replace(s)
}
