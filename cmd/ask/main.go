// Command ask is a terminal client for the ask gateway.
//
// Usage:
//
//	# One question, streamed
//	ask query "What documents does a US-Mexico steel shipment need?" --stream
//
//	# Interactive session that keeps recent turns as history
//	ask chat --language es
package main

func main() {
	Execute()
}
