package flatbuffers

//go:generate flatc --go -o . puzzlestate.fbs message.fbs
