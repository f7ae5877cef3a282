package ports

// Clock es el reloj lógico del ledger. Los deadlines son timestamps absolutos
// comparados contra Now() en el momento de ejecutar — nunca timeouts de
// wall-clock sobre la llamada.
type Clock interface {
	// Now devuelve el timestamp lógico actual en segundos unix.
	Now() int64
}
