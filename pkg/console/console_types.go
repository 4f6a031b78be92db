package console

// TableConfig represents configuration for table rendering
type TableConfig struct {
	Headers   []string
	Rows      [][]string
	Title     string
	ShowTotal bool
	TotalRow  []string
}

// TreeNode represents a node in a hierarchical tree structure
type TreeNode struct {
	Value    string
	Children []TreeNode
}

// renderTreeSimple renders a simple text-based tree without styling
func renderTreeSimple(node TreeNode, prefix string, isLast bool) string {
	var output string

	connector := "├── "
	if isLast {
		connector = "└── "
	}
	if prefix == "" {
		output += node.Value + "\n"
	} else {
		output += prefix + connector + node.Value + "\n"
	}

	for i, child := range node.Children {
		childIsLast := i == len(node.Children)-1
		var childPrefix string
		if prefix == "" {
			childPrefix = ""
		} else {
			if isLast {
				childPrefix = prefix + "    "
			} else {
				childPrefix = prefix + "│   "
			}
		}
		output += renderTreeSimple(child, childPrefix, childIsLast)
	}

	return output
}
