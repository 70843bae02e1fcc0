// Command shelfctl runs catalog commands against an in-process store, without
// a server. The store is loaded from a JSON file or the sample catalog and
// discarded on exit.
package main

func main() {
	execute()
}
