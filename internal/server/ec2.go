package server

import (
	"bytes"
	"encoding/xml"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nicholasgasior/efsim/internal/apierr"
	"github.com/nicholasgasior/efsim/internal/ec2sim"
	"github.com/nicholasgasior/efsim/internal/tags"
)

const ec2Namespace = "http://ec2.amazonaws.com/doc/" + EC2APIVersion + "/"

// Wire shapes for the EC2 query protocol. Element names follow the EC2
// WSDL; the SDK decodes them case-insensitively.

type ec2Tag struct {
	Key   string `xml:"key"`
	Value string `xml:"value"`
}

type vpcXML struct {
	VpcID           string   `xml:"vpcId"`
	CidrBlock       string   `xml:"cidrBlock"`
	State           string   `xml:"state"`
	IsDefault       bool     `xml:"isDefault"`
	OwnerID         string   `xml:"ownerId"`
	DhcpOptionsID   string   `xml:"dhcpOptionsId"`
	InstanceTenancy string   `xml:"instanceTenancy"`
	TagSet          []ec2Tag `xml:"tagSet>item"`
}

type subnetXML struct {
	SubnetID                string   `xml:"subnetId"`
	SubnetArn               string   `xml:"subnetArn"`
	VpcID                   string   `xml:"vpcId"`
	CidrBlock               string   `xml:"cidrBlock"`
	AvailabilityZone        string   `xml:"availabilityZone"`
	AvailabilityZoneID      string   `xml:"availabilityZoneId"`
	AvailableIPAddressCount int32    `xml:"availableIpAddressCount"`
	DefaultForAz            bool     `xml:"defaultForAz"`
	MapPublicIPOnLaunch     bool     `xml:"mapPublicIpOnLaunch"`
	State                   string   `xml:"state"`
	OwnerID                 string   `xml:"ownerId"`
	TagSet                  []ec2Tag `xml:"tagSet>item"`
}

type securityGroupXML struct {
	GroupID          string   `xml:"groupId"`
	GroupName        string   `xml:"groupName"`
	GroupDescription string   `xml:"groupDescription"`
	VpcID            string   `xml:"vpcId"`
	OwnerID          string   `xml:"ownerId"`
	SecurityGroupArn string   `xml:"securityGroupArn"`
	TagSet           []ec2Tag `xml:"tagSet>item"`
}

type groupIdentifierXML struct {
	GroupID   string `xml:"groupId"`
	GroupName string `xml:"groupName"`
}

type privateAddressXML struct {
	PrivateIPAddress string `xml:"privateIpAddress"`
	Primary          bool   `xml:"primary"`
}

type networkInterfaceXML struct {
	NetworkInterfaceID    string               `xml:"networkInterfaceId"`
	SubnetID              string               `xml:"subnetId"`
	VpcID                 string               `xml:"vpcId"`
	AvailabilityZone      string               `xml:"availabilityZone"`
	Description           string               `xml:"description"`
	OwnerID               string               `xml:"ownerId"`
	RequesterID           string               `xml:"requesterId,omitempty"`
	RequesterManaged      bool                 `xml:"requesterManaged"`
	Status                string               `xml:"status"`
	MacAddress            string               `xml:"macAddress"`
	PrivateIPAddress      string               `xml:"privateIpAddress"`
	SourceDestCheck       bool                 `xml:"sourceDestCheck"`
	InterfaceType         string               `xml:"interfaceType"`
	GroupSet              []groupIdentifierXML `xml:"groupSet>item"`
	PrivateIPAddressesSet []privateAddressXML  `xml:"privateIpAddressesSet>item"`
	TagSet                []ec2Tag             `xml:"tagSet>item"`
}

// responseMeta is embedded in every EC2 response body.
type responseMeta struct {
	RequestID string `xml:"requestId"`
}

func (m *responseMeta) setRequestID(id string) { m.RequestID = id }

type ec2Response interface {
	setRequestID(id string)
}

type describeVpcsResponse struct {
	responseMeta
	Vpcs []vpcXML `xml:"vpcSet>item"`
}

type createVpcResponse struct {
	responseMeta
	Vpc vpcXML `xml:"vpc"`
}

type describeSubnetsResponse struct {
	responseMeta
	Subnets []subnetXML `xml:"subnetSet>item"`
}

type createSubnetResponse struct {
	responseMeta
	Subnet subnetXML `xml:"subnet"`
}

type describeSecurityGroupsResponse struct {
	responseMeta
	SecurityGroups []securityGroupXML `xml:"securityGroupInfo>item"`
}

type createSecurityGroupResponse struct {
	responseMeta
	GroupID          string   `xml:"groupId"`
	SecurityGroupArn string   `xml:"securityGroupArn"`
	TagSet           []ec2Tag `xml:"tagSet>item"`
}

type describeNetworkInterfacesResponse struct {
	responseMeta
	NetworkInterfaces []networkInterfaceXML `xml:"networkInterfaceSet>item"`
}

type createNetworkInterfaceResponse struct {
	responseMeta
	NetworkInterface networkInterfaceXML `xml:"networkInterface"`
}

type returnResponse struct {
	responseMeta
	Return  bool   `xml:"return"`
	GroupID string `xml:"groupId,omitempty"`
}

type ec2ErrorResponse struct {
	XMLName   xml.Name      `xml:"Response"`
	Errors    []ec2ErrorXML `xml:"Errors>Error"`
	RequestID string        `xml:"RequestID"`
}

type ec2ErrorXML struct {
	Code    string `xml:"Code"`
	Message string `xml:"Message"`
}

// ec2Action runs one EC2 action. The returned resource id is audited for
// mutating actions.
type ec2Action func(s *Server, q query) (ec2Response, string, error)

var ec2Actions = map[string]ec2Action{
	"CreateVpc":                       (*Server).ec2CreateVpc,
	"DescribeVpcs":                    (*Server).ec2DescribeVpcs,
	"CreateSubnet":                    (*Server).ec2CreateSubnet,
	"DescribeSubnets":                 (*Server).ec2DescribeSubnets,
	"CreateSecurityGroup":             (*Server).ec2CreateSecurityGroup,
	"DescribeSecurityGroups":          (*Server).ec2DescribeSecurityGroups,
	"DeleteSecurityGroup":             (*Server).ec2DeleteSecurityGroup,
	"CreateNetworkInterface":          (*Server).ec2CreateNetworkInterface,
	"DescribeNetworkInterfaces":       (*Server).ec2DescribeNetworkInterfaces,
	"ModifyNetworkInterfaceAttribute": (*Server).ec2ModifyNetworkInterfaceAttribute,
	"DeleteNetworkInterface":          (*Server).ec2DeleteNetworkInterface,
}

// handleQuery dispatches form-encoded POSTs to EC2 or STS.
func (s *Server) handleQuery(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		cl := s.begin(c, serviceEC2, "")
		perr := apierr.New(http.StatusBadRequest, ec2sim.CodeInvalidParameterValue, "The request body could not be parsed.")
		s.finish(cl, "", perr)
		writeEC2Error(c, cl.requestID, perr)
		return
	}
	q := query(c.Request.Form)
	if isSTSRequest(c, q) {
		s.handleSTS(c, q)
		return
	}

	action := q.get("Action")
	cl := s.begin(c, serviceEC2, action)
	run, ok := ec2Actions[action]
	if !ok {
		err := apierr.New(http.StatusBadRequest, "InvalidAction",
			"The action %s is not valid for this web service.", action)
		s.finish(cl, "", err)
		writeEC2Error(c, cl.requestID, err)
		return
	}

	resp, resourceID, err := run(s, q)
	s.finish(cl, resourceID, err)
	if err != nil {
		writeEC2Error(c, cl.requestID, err)
		return
	}
	writeEC2Response(c, action, cl.requestID, resp)
}

func writeEC2Response(c *gin.Context, action, requestID string, resp ec2Response) {
	resp.setRequestID(requestID)

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	start := xml.StartElement{
		Name: xml.Name{Local: action + "Response"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: ec2Namespace}},
	}
	if err := xml.NewEncoder(&buf).EncodeElement(resp, start); err != nil {
		writeEC2Error(c, requestID, err)
		return
	}
	c.Data(http.StatusOK, "text/xml;charset=UTF-8", buf.Bytes())
}

func writeEC2Error(c *gin.Context, requestID string, err error) {
	apiErr := apierr.As(err)
	c.XML(apiErr.StatusCode, ec2ErrorResponse{
		Errors:    []ec2ErrorXML{{Code: apiErr.Code, Message: apiErr.Message}},
		RequestID: requestID,
	})
}

func (s *Server) ec2CreateVpc(q query) (ec2Response, string, error) {
	vpc, err := s.ec2.CreateVPC(ec2sim.CreateVPCInput{
		CIDRBlock: q.get("CidrBlock"),
		Tags:      q.tagSpecs("vpc"),
	})
	if err != nil {
		return nil, "", err
	}
	return &createVpcResponse{Vpc: toVpcXML(vpc)}, vpc.ID, nil
}

func (s *Server) ec2DescribeVpcs(q query) (ec2Response, string, error) {
	vpcs, err := s.ec2.DescribeVPCs(q.list("VpcId"), q.filters())
	if err != nil {
		return nil, "", err
	}
	out := &describeVpcsResponse{}
	for _, v := range vpcs {
		out.Vpcs = append(out.Vpcs, toVpcXML(v))
	}
	return out, "", nil
}

func (s *Server) ec2CreateSubnet(q query) (ec2Response, string, error) {
	sn, err := s.ec2.CreateSubnet(ec2sim.CreateSubnetInput{
		VPCID:            q.get("VpcId"),
		CIDRBlock:        q.get("CidrBlock"),
		AvailabilityZone: q.get("AvailabilityZone"),
		Tags:             q.tagSpecs("subnet"),
	})
	if err != nil {
		return nil, "", err
	}
	return &createSubnetResponse{Subnet: toSubnetXML(sn)}, sn.ID, nil
}

func (s *Server) ec2DescribeSubnets(q query) (ec2Response, string, error) {
	subnets, err := s.ec2.DescribeSubnets(q.list("SubnetId"), q.filters())
	if err != nil {
		return nil, "", err
	}
	out := &describeSubnetsResponse{}
	for _, sn := range subnets {
		out.Subnets = append(out.Subnets, toSubnetXML(sn))
	}
	return out, "", nil
}

func (s *Server) ec2CreateSecurityGroup(q query) (ec2Response, string, error) {
	g, err := s.ec2.CreateSecurityGroup(ec2sim.CreateSecurityGroupInput{
		GroupName:   q.get("GroupName"),
		Description: q.get("GroupDescription"),
		VPCID:       q.get("VpcId"),
		Tags:        q.tagSpecs("security-group"),
	})
	if err != nil {
		return nil, "", err
	}
	return &createSecurityGroupResponse{
		GroupID:          g.ID,
		SecurityGroupArn: g.ARN,
		TagSet:           toEC2Tags(g.Tags),
	}, g.ID, nil
}

func (s *Server) ec2DescribeSecurityGroups(q query) (ec2Response, string, error) {
	groups, err := s.ec2.DescribeSecurityGroups(q.list("GroupId"), q.list("GroupName"), q.filters())
	if err != nil {
		return nil, "", err
	}
	out := &describeSecurityGroupsResponse{}
	for _, g := range groups {
		out.SecurityGroups = append(out.SecurityGroups, securityGroupXML{
			GroupID:          g.ID,
			GroupName:        g.Name,
			GroupDescription: g.Description,
			VpcID:            g.VPCID,
			OwnerID:          g.OwnerID,
			SecurityGroupArn: g.ARN,
			TagSet:           toEC2Tags(g.Tags),
		})
	}
	return out, "", nil
}

func (s *Server) ec2DeleteSecurityGroup(q query) (ec2Response, string, error) {
	id, name := q.get("GroupId"), q.get("GroupName")
	if err := s.ec2.DeleteSecurityGroup(id, name); err != nil {
		return nil, "", err
	}
	resource := id
	if resource == "" {
		resource = name
	}
	return &returnResponse{Return: true, GroupID: id}, resource, nil
}

func (s *Server) ec2CreateNetworkInterface(q query) (ec2Response, string, error) {
	eni, err := s.ec2.CreateNetworkInterface(ec2sim.CreateNetworkInterfaceInput{
		SubnetID:         q.get("SubnetId"),
		Description:      q.get("Description"),
		PrivateIPAddress: q.get("PrivateIpAddress"),
		Groups:           q.list("SecurityGroupId"),
		Tags:             q.tagSpecs("network-interface"),
	})
	if err != nil {
		return nil, "", err
	}
	return &createNetworkInterfaceResponse{NetworkInterface: s.toNetworkInterfaceXML(eni)}, eni.ID, nil
}

func (s *Server) ec2DescribeNetworkInterfaces(q query) (ec2Response, string, error) {
	enis, err := s.ec2.DescribeNetworkInterfaces(q.list("NetworkInterfaceId"), q.filters())
	if err != nil {
		return nil, "", err
	}
	out := &describeNetworkInterfacesResponse{}
	for _, eni := range enis {
		out.NetworkInterfaces = append(out.NetworkInterfaces, s.toNetworkInterfaceXML(eni))
	}
	return out, "", nil
}

func (s *Server) ec2ModifyNetworkInterfaceAttribute(q query) (ec2Response, string, error) {
	id := q.get("NetworkInterfaceId")
	if err := s.ec2.ModifyNetworkInterfaceAttribute(id, q.list("SecurityGroupId")); err != nil {
		return nil, "", err
	}
	return &returnResponse{Return: true}, id, nil
}

func (s *Server) ec2DeleteNetworkInterface(q query) (ec2Response, string, error) {
	id := q.get("NetworkInterfaceId")
	if err := s.ec2.DeleteNetworkInterface(id); err != nil {
		return nil, "", err
	}
	return &returnResponse{Return: true}, id, nil
}

func toVpcXML(v ec2sim.VPC) vpcXML {
	return vpcXML{
		VpcID:           v.ID,
		CidrBlock:       v.CIDRBlock,
		State:           v.State,
		IsDefault:       v.IsDefault,
		OwnerID:         v.OwnerID,
		DhcpOptionsID:   v.DHCPOptionsID,
		InstanceTenancy: v.InstanceTenancy,
		TagSet:          toEC2Tags(v.Tags),
	}
}

func toSubnetXML(sn ec2sim.Subnet) subnetXML {
	return subnetXML{
		SubnetID:                sn.ID,
		SubnetArn:               sn.ARN,
		VpcID:                   sn.VPCID,
		CidrBlock:               sn.CIDRBlock,
		AvailabilityZone:        sn.AvailabilityZone,
		AvailabilityZoneID:      sn.AvailabilityZoneID,
		AvailableIPAddressCount: sn.AvailableIPAddressCount,
		DefaultForAz:            sn.DefaultForAZ,
		MapPublicIPOnLaunch:     sn.MapPublicIPOnLaunch,
		State:                   sn.State,
		OwnerID:                 sn.OwnerID,
		TagSet:                  toEC2Tags(sn.Tags),
	}
}

func (s *Server) toNetworkInterfaceXML(eni ec2sim.NetworkInterface) networkInterfaceXML {
	out := networkInterfaceXML{
		NetworkInterfaceID: eni.ID,
		SubnetID:           eni.SubnetID,
		VpcID:              eni.VPCID,
		AvailabilityZone:   eni.AvailabilityZone,
		Description:        eni.Description,
		OwnerID:            eni.OwnerID,
		RequesterID:        eni.RequesterID,
		RequesterManaged:   eni.RequesterManaged,
		Status:             eni.Status,
		MacAddress:         eni.MACAddress,
		PrivateIPAddress:   eni.PrivateIPAddress,
		SourceDestCheck:    eni.SourceDestCheck,
		InterfaceType:      eni.InterfaceType,
		PrivateIPAddressesSet: []privateAddressXML{
			{PrivateIPAddress: eni.PrivateIPAddress, Primary: true},
		},
		TagSet: toEC2Tags(eni.Tags),
	}
	for _, id := range eni.Groups {
		out.GroupSet = append(out.GroupSet, groupIdentifierXML{GroupID: id, GroupName: s.ec2.GroupName(id)})
	}
	return out
}

func toEC2Tags(set tags.Set) []ec2Tag {
	var out []ec2Tag
	for _, t := range set {
		out = append(out, ec2Tag{Key: t.Key, Value: t.Value})
	}
	return out
}
