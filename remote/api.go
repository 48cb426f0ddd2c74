// Package remote defines the asynchronous storage client contract that sessions
// drive. Implementations deliver every event from their own goroutines.
package remote

import (
	"fmt"
	"time"
)

// Handle identifies a node for the lifetime of a session
type Handle string

// NodeKind distinguishes files from folders
type NodeKind int

const (
	KindFile NodeKind = iota
	KindFolder
)

func (k NodeKind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// Node is an entry in the remote tree. Folders report size 0.
type Node interface {
	Handle() Handle
	Name() string
	Kind() NodeKind
	Size() int64
}

// RequestType names the logical operation a request event belongs to
type RequestType int

const (
	RequestLogin RequestType = iota
	RequestFetchNodes
	RequestGetPublicNode
	RequestExport
	RequestAccountDetails
)

func (t RequestType) String() string {
	switch t {
	case RequestLogin:
		return "login"
	case RequestFetchNodes:
		return "fetch nodes"
	case RequestGetPublicNode:
		return "get public node"
	case RequestExport:
		return "export"
	case RequestAccountDetails:
		return "account details"
	default:
		return fmt.Sprintf("request(%d)", int(t))
	}
}

// AccountDetails is a usage and quota snapshot
type AccountDetails struct {
	StorageUsed   int64
	StorageMax    int64
	Files         int
	Folders       int
	TransferQuota int64
	CapturedAt    time.Time
}

// Request describes the request an event refers to. Fields other than Type
// are filled on finish when the operation produces them.
type Request struct {
	Type       RequestType
	Link       string
	PublicNode Node
	Account    *AccountDetails
}

// TransferType is the direction of a transfer
type TransferType int

const (
	TransferDownload TransferType = iota
	TransferUpload
)

// TransferInfo is a snapshot of a transfer passed with every transfer event.
// Speeds are bytes per second.
type TransferInfo struct {
	Tag              int
	Type             TransferType
	FileName         string
	Path             string
	TotalBytes       int64
	TransferredBytes int64
	Speed            int64
	MeanSpeed        int64
}

// RequestListener receives the lifecycle of one request
type RequestListener interface {
	OnRequestStart(api API, req *Request)
	OnRequestFinish(api API, req *Request, err *Error)
	OnRequestTemporaryError(api API, req *Request, err *Error)
}

// TransferListener receives the lifecycle of one transfer
type TransferListener interface {
	OnTransferStart(api API, t *TransferInfo)
	OnTransferUpdate(api API, t *TransferInfo)
	OnTransferFinish(api API, t *TransferInfo, err *Error)
	OnTransferTemporaryError(api API, t *TransferInfo, err *Error)
}

// API is the callback-driven storage client. Methods that take a listener
// return immediately; outcomes arrive through the listener.
type API interface {
	LoginToFolder(link string, listener RequestListener)
	GetPublicNode(link string, listener RequestListener)
	FetchNodes(listener RequestListener)
	ExportNode(node Node, listener RequestListener)
	GetAccountDetails(listener RequestListener)

	StartDownload(node Node, localPath string, listener TransferListener)
	PauseTransfers(pause bool)
	CancelTransfers(kind TransferType)

	RootNode() Node
	NodeByHandle(h Handle) Node
	Children(node Node) []Node
	Parent(node Node) Node
	// AuthorizeNode returns a copy of node usable for download outside the logged-in tree
	AuthorizeNode(node Node) Node

	Close() error
}
