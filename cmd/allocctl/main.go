// Command allocctl exercises the arenakit allocators from the command line.
package main

func main() {
	execute()
}
