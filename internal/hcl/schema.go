package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block of one file.
type fileRoot struct {
	Graph       *graphBlock     `hcl:"graph,block"`
	Nodes       []*nodeBlock    `hcl:"node,block"`
	Connections []*connectBlock `hcl:"connect,block"`
	Observers   []*observeBlock `hcl:"observe,block"`
}

type graphBlock struct {
	Strategy string `hcl:"strategy,optional"`
	Culling  *bool  `hcl:"culling,optional"`
	Ticks    int    `hcl:"ticks,optional"`
	Workers  int    `hcl:"workers,optional"`
	Interval string `hcl:"interval,optional"`
}

type nodeBlock struct {
	Type      string         `hcl:"type,label"`
	Name      string         `hcl:"name,label"`
	Arguments *argsBlock     `hcl:"arguments,block"`
	Arrays    map[string]int `hcl:"arrays,optional"`
}

// argsBlock keeps the raw body; attributes are evaluated one by one.
type argsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type connectBlock struct {
	From     string `hcl:"from"`
	To       string `hcl:"to"`
	Feedback bool   `hcl:"feedback,optional"`
}

type observeBlock struct {
	Port    string `hcl:"port,label"`
	Publish bool   `hcl:"publish,optional"`
}
