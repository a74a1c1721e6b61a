package apiclient

// RootID is the identifier of every workspace's root folder.
const RootID = "root"

// Workspace is a workspace served by the server.
type Workspace struct {
	ID      string `json:"id"`
	Mounted bool   `json:"mounted"`
	RootID  string `json:"root_id"`
}

// Capabilities describes what the tree of a workspace supports.
type Capabilities struct {
	Versioning bool `json:"versioning"`
	Locking    bool `json:"locking"`
	ACL        bool `json:"acl"`
	Properties bool `json:"properties"`
}

// WorkspaceDetail is a workspace with its capabilities.
type WorkspaceDetail struct {
	Workspace
	Capabilities Capabilities `json:"capabilities"`
}

// ListWorkspaces returns the workspaces served.
func (c *Client) ListWorkspaces() ([]Workspace, error) {
	return listResources[Workspace](c, "/api/v1/workspaces")
}

// GetWorkspace returns a workspace by id.
func (c *Client) GetWorkspace(ws string) (*WorkspaceDetail, error) {
	return getResource[WorkspaceDetail](c, workspacePath(ws))
}
