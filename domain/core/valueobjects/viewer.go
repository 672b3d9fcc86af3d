package valueobjects

import (
	"errors"
	"fmt"
)

// CurrentViewer identifies who is acting on the store. Every read and
// write is scoped to OrgBfOid.
type CurrentViewer struct {
	OrgBfOid    BfGid `json:"orgBfOid"`
	PersonBfGid BfGid `json:"personBfGid"`
}

// NewCurrentViewer validates and builds a viewer
func NewCurrentViewer(orgBfOid, personBfGid string) (CurrentViewer, error) {
	org, err := ParseBfGid(orgBfOid)
	if err != nil {
		return CurrentViewer{}, errors.New("viewer organisation id cannot be empty")
	}
	person, err := ParseBfGid(personBfGid)
	if err != nil {
		return CurrentViewer{}, errors.New("viewer person id cannot be empty")
	}
	return CurrentViewer{OrgBfOid: org, PersonBfGid: person}, nil
}

// OmniViewer builds the system viewer for an organisation, used by
// maintenance tools acting without a person.
func OmniViewer(orgBfOid BfGid) CurrentViewer {
	return CurrentViewer{OrgBfOid: orgBfOid, PersonBfGid: orgBfOid}
}

// Validate reports whether both ids are set
func (cv CurrentViewer) Validate() error {
	if cv.OrgBfOid.IsZero() {
		return errors.New("viewer organisation id cannot be empty")
	}
	if cv.PersonBfGid.IsZero() {
		return errors.New("viewer person id cannot be empty")
	}
	return nil
}

func (cv CurrentViewer) String() string {
	return fmt.Sprintf("CurrentViewer(%s@%s)", cv.PersonBfGid, cv.OrgBfOid)
}
