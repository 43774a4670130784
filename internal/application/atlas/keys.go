package atlas

import "fmt"

func formatKey(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

//Personal.AI order the ending
