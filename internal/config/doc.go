// Package config loads the engine configuration from a YAML file and
// applies defaults for every field left unset. All tunables map onto
// the option constructors of the packages they configure.
package config
