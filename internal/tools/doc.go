// Package tools builds the command lines for the external CLIs the pipelines drive
// (helm, terraform, kubectl and oras) and runs them through a runner.Runner.
package tools
