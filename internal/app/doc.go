// Package app wires a compilation run together: it loads the assembly
// description, builds the compilation, serves progress while it runs and
// writes the image and diagnostics, independent of the CLI entrypoint.
package app
