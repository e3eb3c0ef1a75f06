package logger

import (
	"os"
	"runtime"
	"strings"
)

const basePackage = "alphabill-org/bftnode/"

/*
callerPackage returns the package of the function "skip" frames above the caller
of callerPackage. Packages of this module are returned relative to the module
root (ie "internal/storage"), other packages with their full import path.
*/
func callerPackage(skip int) string {
	pcs := make([]uintptr, 1)
	if runtime.Callers(skip+2, pcs) == 0 {
		return "unknown"
	}
	frame, _ := runtime.CallersFrames(pcs).Next()
	return packageOf(frame.Function)
}

// packageOf strips the function (and receiver) name from fully qualified function
// name, ie "github.com/alphabill-org/bftnode/internal/storage.Open".
func packageOf(funcName string) string {
	if _, after, ok := strings.Cut(funcName, basePackage); ok {
		funcName = after
	}
	pkgStart := strings.LastIndexByte(funcName, '/') + 1
	if dot := strings.IndexByte(funcName[pkgStart:], '.'); dot >= 0 {
		funcName = funcName[:pkgStart+dot]
	}
	return funcName
}

// normalizeName replaces everything except ASCII letters and digits with underscore.
func normalizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

// shortCaller keeps the file name and two parent directories of the caller.
func shortCaller(i interface{}) string {
	c, _ := i.(string)
	idx := len(c)
	for n := 0; n < 3; n++ {
		if idx = strings.LastIndexByte(c[:idx], os.PathSeparator); idx < 0 {
			return c
		}
	}
	return c[idx+1:]
}
