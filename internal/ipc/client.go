package ipc

import (
	"context"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	return DialContext(context.Background(), path)
}

// DialContext connects to the IPC server, giving up at the earlier of the
// context deadline and the dial timeout.
func DialContext(ctx context.Context, path string) (*Client, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(ServiceName+"."+method, req, resp)
}

// callContext issues the call and abandons it when ctx ends first.
func (c *Client) callContext(ctx context.Context, method string, req, resp any) error {
	call := c.client.Go(ServiceName+"."+method, req, resp, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		_ = c.Close()
		return ctx.Err()
	case done := <-call.Done:
		return done.Error
	}
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.call("Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.call("Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EncodePush queues an encode for a recording.
func (c *Client) EncodePush(req EncodePushRequest) (*EncodePushResponse, error) {
	var resp EncodePushResponse
	if err := c.call("EncodePush", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns encode jobs optionally filtered by statuses.
func (c *Client) QueueList(statuses []string) (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.call("QueueList", QueueListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueDescribe returns details for a single job.
func (c *Client) QueueDescribe(id int64) (*QueueDescribeResponse, error) {
	var resp QueueDescribeResponse
	if err := c.call("QueueDescribe", QueueDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRetry retries failed jobs.
func (c *Client) QueueRetry(ids []int64) (*QueueRetryResponse, error) {
	var resp QueueRetryResponse
	if err := c.call("QueueRetry", QueueRetryRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueReset resets jobs stuck in the encoding state.
func (c *Client) QueueReset() (*QueueResetResponse, error) {
	var resp QueueResetResponse
	if err := c.call("QueueReset", QueueResetRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClearCompleted removes completed jobs.
func (c *Client) QueueClearCompleted() (*QueueClearCompletedResponse, error) {
	var resp QueueClearCompletedResponse
	if err := c.call("QueueClearCompleted", QueueClearCompletedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordingList returns the recording catalogue.
func (c *Client) RecordingList() (*RecordingListResponse, error) {
	var resp RecordingListResponse
	if err := c.call("RecordingList", RecordingListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordingShow returns a recording with its encoded files.
func (c *Client) RecordingShow(id int64) (*RecordingShowResponse, error) {
	var resp RecordingShowResponse
	if err := c.call("RecordingShow", RecordingShowRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordingAdd catalogues an existing recording file.
func (c *Client) RecordingAdd(req RecordingAddRequest) (*RecordingAddResponse, error) {
	var resp RecordingAddResponse
	if err := c.call("RecordingAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RegisterFile records a produced file against a recording.
func (c *Client) RegisterFile(ctx context.Context, req RegisterFileRequest) (*RegisterFileResponse, error) {
	var resp RegisterFileResponse
	if err := c.callContext(ctx, "RegisterFile", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns journalled encode outcomes.
func (c *Client) History(kind string, limit int) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.call("History", HistoryRequest{Kind: kind, Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.call("LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.call("TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
