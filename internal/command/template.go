package command

import (
	"strconv"
	"strings"
)

const (
	ChannelPlaceholder  = "<cnum>"
	ArgumentPlaceholder = "<arg>"
)

// Resolve substitutes the channel index and the encoded argument into a
// template. A template without <arg> gets the argument appended after a
// space, so "SENS<cnum>:FREQ:STAR" writes as "SENS1:FREQ:STAR 100".
func Resolve(template string, cnum int, arg string) string {
	r := strings.NewReplacer(ChannelPlaceholder, strconv.Itoa(cnum), ArgumentPlaceholder, arg)
	out := r.Replace(template)
	if arg != "" && !strings.Contains(template, ArgumentPlaceholder) {
		out += " " + arg
	}
	return out
}

// ResolveQuery is Resolve without an argument.
func ResolveQuery(template string, cnum int) string {
	return Resolve(template, cnum, "")
}
