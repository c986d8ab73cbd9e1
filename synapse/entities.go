package synapse

import (
	"context"
	"fmt"
)

// GetUserProfile fetches user profile by ID.
func (c *Client) GetUserProfile(ctx context.Context, id int64) (UserProfile, error) {
	var profile UserProfile
	err := c.RestGET(ctx, fmt.Sprintf("/userProfile/%d", id), &profile)
	return profile, err
}

// GetTeam fetches team by ID.
func (c *Client) GetTeam(ctx context.Context, id int64) (Team, error) {
	var team Team
	err := c.RestGET(ctx, fmt.Sprintf("/team/%d", id), &team)
	return team, err
}

// GetChallenge fetches challenge bound to a project.
func (c *Client) GetChallenge(ctx context.Context, projectID string) (Challenge, error) {
	var challenge Challenge
	err := c.RestGET(ctx, fmt.Sprintf("/entity/%s/challenge", projectID), &challenge)
	return challenge, err
}

// GetProject fetches project entity by ID.
func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var project Project
	err := c.RestGET(ctx, fmt.Sprintf("/entity/%s", id), &project)
	return project, err
}

type createProjectForm struct {
	Name         string `json:"name"`
	ConcreteType string `json:"concreteType"`
}

// CreateProject creates new project with given name.
func (c *Client) CreateProject(ctx context.Context, name string) (Project, error) {
	form := createProjectForm{
		Name:         name,
		ConcreteType: "project",
	}
	var project Project
	err := c.RestPOST(ctx, "/entity", form, &project)
	return project, err
}

type copyEntityForm struct {
	DestinationID string `json:"destinationId"`
}

// CopyEntity deep-copies an entity into destination project.
func (c *Client) CopyEntity(ctx context.Context, entityID, destinationID string) error {
	form := copyEntityForm{DestinationID: destinationID}
	return c.RestPOST(ctx, fmt.Sprintf("/entity/%s/copy", entityID), form, nil)
}

// GetPermissions fetches access types of principal on an entity.
func (c *Client) GetPermissions(
	ctx context.Context, entityID string, principalID int64,
) ([]string, error) {
	var acl AccessControl
	err := c.RestGET(
		ctx, fmt.Sprintf("/entity/%s/acl/%d", entityID, principalID), &acl,
	)
	return acl.AccessTypes, err
}

// SetPermissions grants access types to principal on an entity.
func (c *Client) SetPermissions(
	ctx context.Context, entityID string, principalID int64, accessTypes []string,
) error {
	acl := AccessControl{
		PrincipalID: principalID,
		AccessTypes: accessTypes,
	}
	return c.RestPUT(ctx, fmt.Sprintf("/entity/%s/acl", entityID), acl, nil)
}
