package ownmapupload

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/httpextra"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmapi"
)

var _ MapDataAPI = &OSMAPIClient{}

const DefaultAPIBaseURL = "https://api.openstreetmap.org/api/0.6"

type OSMAPIClientConfig struct {
	// BaseURL is the API root, e.g. https://api.openstreetmap.org/api/0.6
	BaseURL     string
	AccessToken string
	Generator   string
}

// OSMAPIClient talks to an OSM API v0.6 server.
// Reads go through the osmapi datasource, changesets are written with plain requests.
type OSMAPIClient struct {
	config     OSMAPIClientConfig
	datasource *osmapi.Datasource
	doer       httpextra.Doer
}

func NewOSMAPIClient(config OSMAPIClientConfig, client *http.Client) *OSMAPIClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultAPIBaseURL
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")

	datasource := osmapi.NewDatasource(client)
	datasource.BaseURL = config.BaseURL

	return &OSMAPIClient{config, datasource, client}
}

// readError turns an element that is not there (anymore) into a conflict
func readError(err error, key ownmap.ElementKey) errorsx.Error {
	switch err.(type) {
	case *osmapi.NotFoundError:
		return ownmapedits.NewConflictError("%s does not exist", key)
	case *osmapi.GoneError:
		return ownmapedits.NewConflictError("%s has been deleted", key)
	default:
		return errorsx.Wrap(err, "element", key.String())
	}
}

func (c *OSMAPIClient) GetElement(ctx context.Context, key ownmap.ElementKey) (ownmap.Element, errorsx.Error) {
	var obj osm.Object
	var err error

	switch key.Type {
	case ownmap.ObjectTypeNode:
		obj, err = c.datasource.Node(ctx, osm.NodeID(key.ID))
	case ownmap.ObjectTypeWay:
		obj, err = c.datasource.Way(ctx, osm.WayID(key.ID))
	case ownmap.ObjectTypeRelation:
		obj, err = c.datasource.Relation(ctx, osm.RelationID(key.ID))
	default:
		return nil, errorsx.Errorf("unknown element type: %s", key.Type)
	}
	if err != nil {
		return nil, readError(err, key)
	}

	return ownmap.ElementFromOSM(obj)
}

func (c *OSMAPIClient) GetWaysForNode(ctx context.Context, nodeID int64) ([]*ownmap.Way, errorsx.Error) {
	osmWays, err := c.datasource.NodeWays(ctx, osm.NodeID(nodeID))
	if err != nil {
		return nil, readError(err, ownmap.ElementKey{Type: ownmap.ObjectTypeNode, ID: nodeID})
	}

	var ways []*ownmap.Way
	for _, osmWay := range osmWays {
		ways = append(ways, ownmap.WayFromOSM(osmWay))
	}
	return ways, nil
}

func (c *OSMAPIClient) GetRelationsForNode(ctx context.Context, nodeID int64) ([]*ownmap.Relation, errorsx.Error) {
	osmRelations, err := c.datasource.NodeRelations(ctx, osm.NodeID(nodeID))
	if err != nil {
		return nil, readError(err, ownmap.ElementKey{Type: ownmap.ObjectTypeNode, ID: nodeID})
	}

	var relations []*ownmap.Relation
	for _, osmRelation := range osmRelations {
		relation, errx := ownmap.RelationFromOSM(osmRelation)
		if errx != nil {
			return nil, errx
		}
		relations = append(relations, relation)
	}
	return relations, nil
}

func (c *OSMAPIClient) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, errorsx.Error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
	if err != nil {
		return nil, errorsx.Wrap(err, "path", path)
	}

	if body != nil {
		req.Header.Set("Content-Type", "text/xml")
	}
	if c.config.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	}

	return req, nil
}

// do sends the request, returning the response body if the status code was 200
func (c *OSMAPIClient) do(req *http.Request) ([]byte, errorsx.Error) {
	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, errorsx.Wrap(err, "url", req.URL.String())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusCodeError(resp, req)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errorsx.Wrap(err, "url", req.URL.String())
	}

	return b, nil
}

// unexpectedStatusError is the response to a request that did not return 200
type unexpectedStatusError struct {
	StatusCode int
	Message    string
}

func (e *unexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected response code %d: %s", e.StatusCode, e.Message)
}

// statusCodeError classifies a failed response. Only a closed changeset is recognised here,
// everything else is a transport or server error until the caller knows better.
func statusCodeError(resp *http.Response, req *http.Request) errorsx.Error {
	message := httpextra.GetBodyOrErrorMsg(resp)

	if resp.StatusCode == http.StatusConflict && strings.Contains(message, "was closed") {
		return errorsx.Wrap(ErrChangesetClosed, "url", req.URL.String(), "message", message)
	}

	return errorsx.Wrap(
		&unexpectedStatusError{resp.StatusCode, message},
		"url", req.URL.String(),
	)
}

// uploadError turns the responses the API gives for uploads against changed elements into conflicts
func uploadError(err errorsx.Error) errorsx.Error {
	statusErr, ok := errorsx.Cause(err).(*unexpectedStatusError)
	if !ok {
		return err
	}

	switch statusErr.StatusCode {
	case http.StatusConflict, http.StatusPreconditionFailed, http.StatusNotFound, http.StatusGone:
		// the uploaded elements reference elements that have changed or don't exist anymore
		return ownmapedits.NewConflictError("%s", statusErr.Message)
	default:
		return err
	}
}

type changesetDoc struct {
	XMLName   xml.Name `xml:"osm"`
	Changeset struct {
		Tags osm.Tags `xml:"tag"`
	} `xml:"changeset"`
}

func (c *OSMAPIClient) OpenChangeset(ctx context.Context, tags ownmap.TagMap) (int64, errorsx.Error) {
	doc := new(changesetDoc)
	doc.Changeset.Tags = tags.ToOSMTags()

	body, err := xml.Marshal(doc)
	if err != nil {
		return 0, errorsx.Wrap(err)
	}

	req, errx := c.newRequest(ctx, http.MethodPut, "/changeset/create", body)
	if errx != nil {
		return 0, errx
	}

	respBody, errx := c.do(req)
	if errx != nil {
		return 0, errx
	}

	changesetID, err := strconv.ParseInt(strings.TrimSpace(string(respBody)), 10, 64)
	if err != nil {
		return 0, errorsx.Wrap(err, "body", string(respBody))
	}

	return changesetID, nil
}

func (c *OSMAPIClient) CloseChangeset(ctx context.Context, changesetID int64) errorsx.Error {
	req, err := c.newRequest(ctx, http.MethodPut, fmt.Sprintf("/changeset/%d/close", changesetID), nil)
	if err != nil {
		return err
	}

	_, err = c.do(req)
	if err != nil {
		return errorsx.Wrap(err, "changesetID", changesetID)
	}

	return nil
}

func (c *OSMAPIClient) UploadChanges(ctx context.Context, changesetID int64, elements []ownmap.Element) ([]*DiffResultEntry, errorsx.Error) {
	change, errx := buildOSMChange(changesetID, elements, c.config.Generator)
	if errx != nil {
		return nil, errx
	}

	body, err := xml.Marshal(change)
	if err != nil {
		return nil, errorsx.Wrap(err, "changesetID", changesetID)
	}

	req, errx := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/changeset/%d/upload", changesetID), body)
	if errx != nil {
		return nil, errx
	}

	respBody, errx := c.do(req)
	if errx != nil {
		return nil, errorsx.Wrap(uploadError(errx), "changesetID", changesetID)
	}

	return parseDiffResult(respBody)
}
