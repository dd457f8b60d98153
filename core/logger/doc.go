// Package logger sets up structured logging for the machine and summarizes
// the resulting application log.
package logger
