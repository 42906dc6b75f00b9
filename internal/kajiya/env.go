package kajiya

import (
	"fmt"
	"os"
	"strings"
)

// composeEnv builds the environment for one stage invocation. It starts
// from a copy of the ambient process environment and never mutates it.
//
// PATH priority, highest first: <basePrefix>/bin, then the hostPrefixes'
// bin dirs in reverse slice order (the last supplied prefix wins a name
// collision against earlier ones), then the ambient PATH. Freshly
// installed binaries in the recipe's own prefix must shadow every host
// compiler of the same name.
//
// overrides, when non-nil, sets compiler-selection variables (CC, CXX,
// CPP) to target-prefixed tool names. Used only by stages that build
// target runtime libraries with the just-installed cross compiler.
func composeEnv(basePrefix string, hostPrefixes []string, target string, overrides map[string]string) []string {
	ambient := os.Environ()
	env := make([]string, 0, len(ambient)+4)

	path := os.Getenv("PATH")
	for _, p := range hostPrefixes {
		path = absPrefix(p) + "/bin:" + path
	}
	path = absPrefix(basePrefix) + "/bin:" + path

	for _, kv := range ambient {
		if strings.HasPrefix(kv, "PATH=") {
			continue
		}
		env = append(env, kv)
	}

	env = append(env, "PATH="+path)
	env = append(env, "PREFIX="+absPrefix(basePrefix))
	env = append(env, "TARGET="+target)

	for _, key := range []string{"CC", "CXX", "CPP"} {
		if tool, ok := overrides[key]; ok {
			env = append(env, fmt.Sprintf("%s=%s", key, tool))
		}
	}

	return env
}

// crossOverrides returns the compiler-selection variables pointing at the
// triple-prefixed drivers of a freshly installed cross compiler.
func crossOverrides(target string) map[string]string {
	return map[string]string{
		"CC":  target + "-gcc",
		"CXX": target + "-g++",
		"CPP": target + "-cpp",
	}
}
