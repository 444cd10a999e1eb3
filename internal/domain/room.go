package domain

import "errors"

type RoomCode string

type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

const (
	RoomCodeLen  = 6
	RoomCapacity = 16
)

var (
	ErrRoomFull     = errors.New("room is full")
	ErrRoomNotFound = errors.New("room not found")
	ErrGameStarted  = errors.New("game already started")
)
