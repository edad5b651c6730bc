package handler

import "strings"

// DefaultRedirect is where a successful login lands when no usable next
// target was supplied.
const DefaultRedirect = "/views"

// SafeRedirect returns next when it is a local path, DefaultRedirect otherwise.
// Protocol-relative targets, backslash tricks and anything carrying a scheme
// are rejected so the login form cannot be used as an open redirect.
func SafeRedirect(next string) string {
	if isLocalPath(next) {
		return next
	}
	return DefaultRedirect
}

func isLocalPath(path string) bool {
	if !strings.HasPrefix(path, "/") {
		return false
	}
	if strings.HasPrefix(path, "//") {
		return false
	}
	if strings.Contains(path, "\\") {
		return false
	}
	return !strings.Contains(path, "://")
}
