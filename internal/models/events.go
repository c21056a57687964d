package models

import "context"

// EventHandler consumes inbound gateway events.
type EventHandler interface {
	Handle(ctx context.Context, event Event)
}

// Event is an inbound event delivered by the messaging gateway.
type Event interface {
	Sender() Buyer
}

// CommandInvoked is a slash command. Payload is the raw text after the command name
// and Attachment is a file handle when the command came with a document.
type CommandInvoked struct {
	Name       string
	Args       []string
	Payload    string
	Attachment string
	From       Buyer
}

func (e CommandInvoked) Sender() Buyer { return e.From }

type TextReceived struct {
	Text string
	From Buyer
}

func (e TextReceived) Sender() Buyer { return e.From }

type PhotoReceived struct {
	FileHandle string
	From       Buyer
}

func (e PhotoReceived) Sender() Buyer { return e.From }

// ButtonPressed is an inline keyboard press. QueryID is the gateway's id used to
// acknowledge the press.
type ButtonPressed struct {
	QueryID    string
	CallbackID string
	From       Buyer
}

func (e ButtonPressed) Sender() Buyer { return e.From }

// KeyboardButton is one inline button; CallbackID is echoed back in ButtonPressed.
type KeyboardButton struct {
	Label      string
	CallbackID string
}

// Keyboard is a set of rows of inline buttons.
type Keyboard struct {
	Rows [][]KeyboardButton
}
