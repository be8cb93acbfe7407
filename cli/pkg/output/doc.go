// Package output renders command results as text or JSON.
package output
