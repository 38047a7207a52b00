// Package messages renders conversation notices as chat text in English or
// Arabic using a golang.org/x/text message catalog.
package messages
