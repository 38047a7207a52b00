// Package textutil sanitizes user-controlled text, such as media titles, into
// safe upload file names.
package textutil
