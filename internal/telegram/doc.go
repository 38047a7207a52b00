// Package telegram connects the conversation and delivery stages to the
// Telegram Bot API through gopkg.in/telebot.v4.
//
// Bot turns messages, commands, and button presses into conversation inputs.
// Transport renders notices with their inline keyboards and uploads parts,
// reporting "Request Entity Too Large" answers as size rejections.
package telegram
