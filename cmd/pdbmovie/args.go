package main

import (
	"strconv"
	"strings"
)

// multiValueFlags take several values in one occurrence, as in
// "--modes 7 8 9" or "--res 800 600".
var multiValueFlags = map[string]bool{
	"--modes": true,
	"--ecuts": true,
	"--res":   true,
}

// joinMultiValueFlags folds the bare numbers following a multi-value flag
// into its value as a comma list, so "--modes 7 8" parses like
// "--modes 7,8". Parsing stops at "--".
func joinMultiValueFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return append(out, args[i:]...)
		}

		name, value, inline := strings.Cut(arg, "=")
		if !multiValueFlags[name] {
			out = append(out, arg)
			continue
		}
		if !inline {
			if i+1 >= len(args) {
				out = append(out, arg)
				continue
			}
			i++
			value = args[i]
		}
		for i+1 < len(args) && isNumber(args[i+1]) {
			i++
			value += "," + args[i]
		}
		out = append(out, name+"="+value)
	}
	return out
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
