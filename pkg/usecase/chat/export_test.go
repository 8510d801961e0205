package chat

var LoadWithClock = load
